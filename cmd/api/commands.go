package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/maintenance"
	"github.com/spec-kit/ticket-enrichment/internal/persistence"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API together with enrichment workers and maintenance jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd.Context(), true)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run enrichment workers and maintenance jobs without the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd.Context(), false)
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Mark idle tickets stale, delete old closed tickets and fail stuck enrichments once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			c, err := newContainer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.newCleanup().Run(ctx)
			if err != nil {
				return err
			}
			reaped, err := c.newReaper().Execute(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Marked %d tickets as stale.\n", result.MarkedStale)
			fmt.Fprintf(out, "Deleted %d closed tickets.\n", result.Deleted)
			fmt.Fprintf(out, "Failed %d tickets stuck in processing.\n", reaped)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()
			if !pg.Enabled() {
				return errors.New("POSTGRES_DSN is required to run migrations")
			}
			return persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger)
		},
	}
}

// runProcess starts the workers, the maintenance scheduler and optionally the
// HTTP server, then blocks until SIGINT or SIGTERM.
func runProcess(parent context.Context, withHTTP bool) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if !withHTTP && !c.postgres.Enabled() {
		logger.Warn("worker running against in-memory storage; it cannot see tickets created by other processes")
	}

	pool, err := c.newPool()
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	var scheduler *maintenance.Scheduler
	if cfg.Maintenance.Enabled {
		scheduler, err = c.newScheduler()
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
	}

	pool.Start()
	if scheduler != nil {
		scheduler.Start()
	}

	serverErr := make(chan error, 1)
	var app *fiber.App
	if withHTTP {
		app = c.newHTTPApp()
		go func() {
			logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
			serverErr <- app.Listen(cfg.App.Addr())
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serverErr:
		logger.Error("http server stopped", zap.Error(err))
	}

	if app != nil {
		if shutdownErr := app.Shutdown(); shutdownErr != nil {
			logger.Warn("http shutdown failed", zap.Error(shutdownErr))
		}
	}
	if scheduler != nil {
		if shutdownErr := scheduler.Shutdown(); shutdownErr != nil {
			logger.Warn("scheduler shutdown failed", zap.Error(shutdownErr))
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.ShutdownWait)
	defer cancel()
	if stopErr := pool.Stop(stopCtx); stopErr != nil {
		logger.Warn("worker shutdown incomplete", zap.Error(stopErr))
	}
	return err
}
