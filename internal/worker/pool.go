// Package worker runs enrichment tasks pulled from the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/config"
	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/observability"
	"github.com/spec-kit/ticket-enrichment/internal/queue"
)

// TaskQueue is the queue surface the pool consumes.
type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
	Schedule(ctx context.Context, task queue.Task, at time.Time) error
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error)
}

// LeaseManager guards against two workers enriching the same ticket.
type LeaseManager interface {
	Acquire(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// TicketLoader loads the ticket a task refers to.
type TicketLoader interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// Runner executes one attempt and handles permanent failure.
type Runner interface {
	Run(ctx context.Context, ticket *domain.Ticket) error
	Failed(ctx context.Context, ticketID string, cause error) error
}

// Config represents pool configuration.
type Config struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	PollTimeout time.Duration
	LeaseRetry  time.Duration
}

// ConfigFrom maps queue settings onto the pool.
func ConfigFrom(cfg config.QueueConfig) Config {
	return Config{
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		PollTimeout: cfg.PollTimeout,
		LeaseRetry:  cfg.LeaseRetry,
	}
}

// Validate validates configuration.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return errors.New("workers must be greater than 0")
	}
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be greater than 0")
	}
	if c.PollTimeout <= 0 {
		return errors.New("poll timeout must be positive")
	}
	return nil
}

// Pool is a fixed set of goroutines draining the queue.
type Pool struct {
	cfg        Config
	queue      TaskQueue
	leases     LeaseManager
	tickets    TicketLoader
	runner     Runner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool. leases and dispatcher may be nil.
func NewPool(
	cfg Config,
	q TaskQueue,
	leases LeaseManager,
	tickets TicketLoader,
	runner Runner,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:        cfg,
		queue:      q,
		leases:     leases,
		tickets:    tickets,
		runner:     runner,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.Info("starting enrichment workers", zap.Int("workers", p.cfg.Workers))
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops polling and waits for in-flight attempts until ctx expires.
func (p *Pool) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("enrichment workers stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for enrichment workers: %w", ctx.Err())
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", id))

	for p.ctx.Err() == nil {
		task, err := p.queue.Dequeue(p.ctx, p.cfg.PollTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			log.Warn("dequeue failed", zap.Error(err))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.cfg.PollTimeout):
			}
			continue
		}
		if task == nil {
			continue
		}

		// In-flight attempts are not cancelled by shutdown.
		if err := p.Handle(context.WithoutCancel(p.ctx), *task); err != nil {
			log.Error("task handling failed",
				zap.String("task_id", task.ID),
				zap.String("ticket_id", task.TicketID),
				zap.Error(err))
		}
	}
}

// Handle runs one delivery of task: it takes the ticket lease, runs the job
// and either schedules a retry or fires the permanent-failure hook.
func (p *Pool) Handle(ctx context.Context, task queue.Task) error {
	log := p.logger.With(zap.String("task_id", task.ID), zap.String("ticket_id", task.TicketID))

	if p.leases != nil {
		token, ok, err := p.leases.Acquire(ctx, task.TicketID)
		if err != nil || !ok {
			if err != nil {
				log.Warn("lease unavailable", zap.Error(err))
			}
			p.metrics.RecordEnrichment(observability.OutcomeDeferred)
			return p.queue.Schedule(ctx, task, p.now().Add(p.cfg.LeaseRetry))
		}
		defer func() {
			if err := p.leases.Release(ctx, task.TicketID, token); err != nil {
				log.Warn("lease release failed", zap.Error(err))
			}
		}()
	}

	task.Attempt++
	err := p.runAttempt(ctx, task.TicketID)
	if errors.Is(err, errTicketGone) {
		log.Info("ticket no longer exists; dropping task")
		return nil
	}
	if err == nil {
		return nil
	}

	task.LastError = err.Error()
	if task.Attempt < p.cfg.MaxAttempts {
		p.metrics.RecordEnrichment(observability.OutcomeRetried)
		log.Warn("enrichment attempt failed; retry scheduled",
			zap.Int("attempt", task.Attempt),
			zap.Duration("backoff", p.cfg.Backoff),
			zap.Error(err))
		p.publishRetry(ctx, task)
		return p.queue.Schedule(ctx, task, p.now().Add(p.cfg.Backoff))
	}

	return p.runner.Failed(ctx, task.TicketID, err)
}

var errTicketGone = errors.New("ticket not found")

func (p *Pool) runAttempt(ctx context.Context, ticketID string) error {
	ticket, err := p.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errTicketGone
	}
	if err != nil {
		return fmt.Errorf("load ticket: %w", err)
	}
	return p.runner.Run(ctx, ticket)
}

func (p *Pool) publishRetry(ctx context.Context, task queue.Task) {
	if p.dispatcher == nil {
		return
	}
	event := events.NewEvent(events.EventTicketEnrichmentRetrying, task.TicketID, events.SystemActor,
		events.TicketEnrichmentFailedPayload{Error: task.LastError, Attempt: task.Attempt})
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
