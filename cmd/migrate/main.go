package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ogurasousui/orgchart/internal/platform/config"
	"github.com/ogurasousui/orgchart/internal/platform/db/migration"
	"github.com/ogurasousui/orgchart/internal/platform/logging"
	"github.com/rs/zerolog"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		migrationsDir = flag.String("dir", "", "directory containing migration files (defaults to the embedded migrations)")
	)
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if err := runMigration(logger, action, *migrationsDir, cfg.Database.DSN()); err != nil {
		logger.Fatal().Err(err).Str("action", action).Msg("migration failed")
	}

	logger.Info().Str("action", action).Msg("migration completed")
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func runMigration(logger zerolog.Logger, action, dir, dsn string) error {
	m, err := migration.New(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	return migration.Run(m, action, logger)
}
