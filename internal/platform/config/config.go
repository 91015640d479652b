package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数による上書きに使う接頭辞です。
const EnvPrefix = "ORGCHART_"

const (
	defaultHierarchyLockKey  = "orgchart.employees"
	defaultDBApplicationName = "orgchart"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Hierarchy HierarchyConfig `yaml:"hierarchy" envPrefix:"HIERARCHY_"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// MetricsConfig は Prometheus エンドポイントの設定です。ListenAddr が空なら公開しません。
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host                 string        `yaml:"host" env:"HOST"`
	Port                 int           `yaml:"port" env:"PORT"`
	User                 string        `yaml:"user" env:"USER"`
	Password             string        `yaml:"password" env:"PASSWORD"`
	Name                 string        `yaml:"name" env:"NAME"`
	SSLMode              string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns         int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns         int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime      time.Duration `yaml:"-"`
	ConnMaxIdleTime      time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw   string        `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTimeRaw   string        `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	// ApplicationName は pg_stat_activity に表示される接続名です。
	ApplicationName      string        `yaml:"application_name" env:"APPLICATION_NAME"`
	ConnectTimeout       time.Duration `yaml:"-"`
	HealthCheckPeriod    time.Duration `yaml:"-"`
	ConnectTimeoutRaw    string        `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	HealthCheckPeriodRaw string        `yaml:"health_check_period" env:"HEALTH_CHECK_PERIOD"`
}

// HierarchyConfig は組織階層の書き込み制御に関する設定です。
type HierarchyConfig struct {
	// LockKey は階層への書き込みを直列化するアドバイザリロックのキーです。
	LockKey string `yaml:"lock_key" env:"LOCK_KEY"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	return parse(b, os.Environ())
}

func parse(content []byte, environ []string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: env.ToMap(environ),
	}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if c.Metrics.ListenAddr != "" && c.Metrics.ListenAddr == c.Server.ListenAddr {
		return fmt.Errorf("config: metrics.listen_addr must differ from server.listen_addr")
	}

	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}

	db := &c.Database
	if err := db.validateAndNormalize(); err != nil {
		return err
	}

	c.Hierarchy.LockKey = strings.TrimSpace(c.Hierarchy.LockKey)
	if c.Hierarchy.LockKey == "" {
		c.Hierarchy.LockKey = defaultHierarchyLockKey
	}

	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", l.Format)
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	connectTimeout, err := parseDurationAllowEmpty(d.ConnectTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: database.connect_timeout: %w", err)
	}
	d.ConnectTimeout = connectTimeout

	healthCheck, err := parseDurationAllowEmpty(d.HealthCheckPeriodRaw)
	if err != nil {
		return fmt.Errorf("config: database.health_check_period: %w", err)
	}
	d.HealthCheckPeriod = healthCheck

	if d.MaxOpenConns > 0 && d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("config: database.max_idle_conns (%d) must not exceed max_open_conns (%d)", d.MaxIdleConns, d.MaxOpenConns)
	}

	d.ApplicationName = strings.TrimSpace(d.ApplicationName)
	if d.ApplicationName == "" {
		d.ApplicationName = defaultDBApplicationName
	}

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx / golang-migrate 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
