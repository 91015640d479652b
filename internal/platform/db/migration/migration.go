package migration

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/ogurasousui/orgchart/assets"
	"github.com/rs/zerolog"
)

// Migrator は golang-migrate の操作のうち本パッケージが利用するものです。
type Migrator interface {
	Up() error
	Down() error
	Drop() error
	Version() (uint, bool, error)
}

// New は migrate インスタンスを生成します。dir が空の場合はバイナリ同梱のマイグレーションを使います。
func New(dir, dsn string) (*migrate.Migrate, error) {
	if dir == "" {
		src, err := iofs.New(assets.Migrations, "migrations")
		if err != nil {
			return nil, fmt.Errorf("migration: open embedded source: %w", err)
		}
		m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
		if err != nil {
			return nil, fmt.Errorf("migration: create migrate instance: %w", err)
		}
		return m, nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("migration: resolve path for %s: %w", dir, err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return nil, fmt.Errorf("migration: create migrate instance: %w", err)
	}
	return m, nil
}

// Run は action (up / down / drop / version) を実行します。
func Run(m Migrator, action string, logger zerolog.Logger) error {
	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info().Msg("no migration applied")
				return nil
			}
			return err
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migration version")
		return nil
	default:
		return fmt.Errorf("migration: unsupported action %q", action)
	}
}
