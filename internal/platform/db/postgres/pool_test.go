package postgres

import (
	"testing"
	"time"

	"github.com/ogurasousui/orgchart/internal/platform/config"
)

func newTestDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:              "localhost",
		Port:              15432,
		User:              "orgchart",
		Password:          "secret",
		Name:              "db",
		SSLMode:           "disable",
		MaxOpenConns:      20,
		MaxIdleConns:      5,
		ConnMaxLifetime:   30 * time.Minute,
		ConnMaxIdleTime:   10 * time.Minute,
		ApplicationName:   "orgchart-test",
		ConnectTimeout:    3 * time.Second,
		HealthCheckPeriod: 15 * time.Second,
	}
}

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	poolCfg, err := BuildPoolConfig(newTestDatabaseConfig())
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", poolCfg.MaxConns)
	}

	if poolCfg.MinConns != 5 {
		t.Errorf("expected MinConns 5, got %d", poolCfg.MinConns)
	}

	if poolCfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("unexpected MaxConnLifetime: %v", poolCfg.MaxConnLifetime)
	}

	if poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected MaxConnIdleTime: %v", poolCfg.MaxConnIdleTime)
	}

	if poolCfg.HealthCheckPeriod != 15*time.Second {
		t.Errorf("unexpected HealthCheckPeriod: %v", poolCfg.HealthCheckPeriod)
	}

	if poolCfg.ConnConfig.ConnectTimeout != 3*time.Second {
		t.Errorf("unexpected ConnectTimeout: %v", poolCfg.ConnConfig.ConnectTimeout)
	}

	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "orgchart-test" {
		t.Errorf("expected application_name orgchart-test, got %q", got)
	}

	if poolCfg.ConnConfig.Database != "db" {
		t.Errorf("expected database db, got %s", poolCfg.ConnConfig.Database)
	}
}

func TestBuildPoolConfig_KeepsPoolDefaults(t *testing.T) {
	t.Parallel()

	cfg := newTestDatabaseConfig()
	cfg.MaxOpenConns = 0
	cfg.MaxIdleConns = 0
	cfg.HealthCheckPeriod = 0

	poolCfg, err := BuildPoolConfig(cfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns <= 0 {
		t.Errorf("expected pgxpool default MaxConns, got %d", poolCfg.MaxConns)
	}
	if poolCfg.HealthCheckPeriod != time.Minute {
		t.Errorf("expected pgxpool default HealthCheckPeriod, got %v", poolCfg.HealthCheckPeriod)
	}
}

func TestBuildPoolConfig_MinConnsExceedMax(t *testing.T) {
	t.Parallel()

	cfg := newTestDatabaseConfig()
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 4

	if _, err := BuildPoolConfig(cfg); err == nil {
		t.Fatal("expected error when min conns exceed max conns")
	}
}
