package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/orgchart/internal/adapters/repository/postgres"
	"github.com/ogurasousui/orgchart/internal/core/employee"
	"github.com/ogurasousui/orgchart/internal/platform/config"
	pg "github.com/ogurasousui/orgchart/internal/platform/db/postgres"
	"github.com/ogurasousui/orgchart/internal/platform/logging"
	"github.com/ogurasousui/orgchart/internal/platform/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server stopped with error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(effectiveConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	ctx = logger.WithContext(ctx)

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool)
	employeeRepo := postgres.NewEmployeeRepository(dbPool, cfg.Hierarchy.LockKey)
	employeeSvc := employee.NewService(employeeRepo, nil, txManager)

	var metrics *server.Metrics
	if cfg.Metrics.ListenAddr != "" {
		metrics = server.NewMetrics()
	}

	grpcServer := server.New(cfg.Server.ListenAddr, employeeSvc, logger, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Run(gctx)
	})
	if metrics != nil {
		metricsServer := server.NewMetricsServer(cfg.Metrics.ListenAddr, metrics, logger)
		g.Go(func() error {
			return metricsServer.Run(gctx)
		})
	}

	logger.Info().
		Str("grpc_addr", cfg.Server.ListenAddr).
		Str("metrics_addr", cfg.Metrics.ListenAddr).
		Str("lock_key", cfg.Hierarchy.LockKey).
		Msg("orgchart server started")

	if err := g.Wait(); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Msg("orgchart server stopped")
	return nil
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
