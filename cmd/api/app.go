package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/analysis"
	httptransport "github.com/spec-kit/ticket-enrichment/internal/api/http"
	"github.com/spec-kit/ticket-enrichment/internal/api/http/handlers"
	"github.com/spec-kit/ticket-enrichment/internal/auth"
	"github.com/spec-kit/ticket-enrichment/internal/config"
	"github.com/spec-kit/ticket-enrichment/internal/enrichment"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/maintenance"
	"github.com/spec-kit/ticket-enrichment/internal/observability"
	"github.com/spec-kit/ticket-enrichment/internal/persistence"
	"github.com/spec-kit/ticket-enrichment/internal/queue"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
	"github.com/spec-kit/ticket-enrichment/internal/repository/memory"
	"github.com/spec-kit/ticket-enrichment/internal/service"
	"github.com/spec-kit/ticket-enrichment/internal/worker"
)

// container holds every long-lived component of one process.
type container struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	postgres *persistence.Postgres
	redis    *persistence.Redis

	tickets    repository.TicketRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	prompts    repository.PromptSettingRepository
	history    repository.TicketHistoryRepository

	dispatcher events.Dispatcher
	queue      *queue.RedisQueue
	locker     *queue.RedisLocker
	revoked    auth.RevocationStore

	ticketService  *service.TicketService
	historyService *service.HistoryService
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// newContainer connects storage and wires the event subscribers. Without a
// Postgres DSN the repositories live in process memory.
func newContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)

	c := &container{
		cfg:        cfg,
		logger:     logger,
		metrics:    observability.NewMetrics(),
		postgres:   pg,
		redis:      rdb,
		dispatcher: events.NewInMemoryDispatcher(),
		queue:      queue.NewRedisQueue(rdb.Client, cfg.Queue.KeyPrefix),
		locker:     queue.NewRedisLocker(rdb.Client, cfg.Queue.KeyPrefix, cfg.Queue.LeaseTTL),
		revoked:    auth.NewRedisRevocationStore(rdb.Client, cfg.App.Name),
	}

	if pg.Enabled() {
		pool := pg.PoolHandle()
		c.tickets = repository.NewTicketRepository(pool)
		c.users = repository.NewUserRepository(pool)
		c.categories = repository.NewCategoryRepository(pool)
		c.prompts = repository.NewPromptSettingRepository(pool)
		c.history = repository.NewTicketHistoryRepository(pool)
	} else {
		store := memory.NewSeededStore()
		c.tickets = store.Tickets()
		c.users = store.Users()
		c.categories = store.Categories()
		c.prompts = store.Prompts()
		c.history = store.History()
	}

	worker.RegisterEnqueuer(c.dispatcher, c.queue, logger.Named("enqueuer"))
	c.ticketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo: c.tickets,
		Dispatcher: c.dispatcher,
		Logger:     logger.Named("tickets"),
	})
	c.historyService = service.NewHistoryService(c.history, c.ticketService, logger.Named("history"))
	c.historyService.RegisterHandlers(c.dispatcher)
	worker.StartNotificationWorker(service.NewNotificationService(c.dispatcher, logger.Named("notifications"), cfg.Notification))
	return c, nil
}

func (c *container) Close() {
	c.redis.Close()
	c.postgres.Close()
}

func (c *container) newPool() (*worker.Pool, error) {
	engine := analysis.NewEngine(c.cfg.AI, analysis.Sources{
		Categories: c.categories,
		Prompts:    c.prompts,
	}, c.logger, c.metrics)
	job := enrichment.NewJob(c.tickets, engine, c.dispatcher, c.logger.Named("enrichment"), c.metrics)
	return worker.NewPool(
		worker.ConfigFrom(c.cfg.Queue),
		c.queue,
		c.locker,
		c.tickets,
		job,
		c.dispatcher,
		c.logger.Named("worker"),
		c.metrics,
	)
}

func (c *container) newReaper() *maintenance.StuckProcessingReaper {
	return maintenance.NewStuckProcessingReaper(c.tickets, c.cfg.Maintenance.ProcessingTimeout)
}

func (c *container) newCleanup() *maintenance.TicketCleanup {
	return maintenance.NewTicketCleanup(c.tickets, c.cfg.Maintenance.StaleAfter, c.cfg.Maintenance.PurgeAfter)
}

func (c *container) newScheduler() (*maintenance.Scheduler, error) {
	return maintenance.NewScheduler(c.cfg.Maintenance, c.newReaper(), c.newCleanup(), c.logger.Named("maintenance"))
}

func (c *container) newHTTPApp() *fiber.App {
	authService := service.NewAuthService(c.cfg.Auth, service.AuthDependencies{
		UserRepo:    c.users,
		Revocations: c.revoked,
	})

	checks := map[string]handlers.Pinger{"redis": c.redis}
	if c.postgres.Enabled() {
		checks["postgres"] = c.postgres
	}

	app := fiber.New(fiber.Config{AppName: c.cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         c.logger,
		Metrics:        c.metrics,
		RequestTimeout: c.cfg.App.RequestTimeout(),
		DefaultLocale:  c.cfg.App.Locale,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName: c.cfg.App.Name,
			Version:     c.cfg.App.Version,
			Checks:      checks,
			Queue:       c.queue,
			Metrics:     c.metrics,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(c.ticketService, c.historyService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), c.users, c.revoked),
	})
	return app
}
