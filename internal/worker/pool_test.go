package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/analysis"
	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/enrichment"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/observability"
	"github.com/spec-kit/ticket-enrichment/internal/queue"
	"github.com/spec-kit/ticket-enrichment/internal/repository/memory"
)

type scheduled struct {
	task queue.Task
	at   time.Time
}

type fakeQueue struct {
	mu        sync.Mutex
	ready     []queue.Task
	scheduled []scheduled
}

func (q *fakeQueue) Enqueue(_ context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, task)
	return nil
}

func (q *fakeQueue) Schedule(_ context.Context, task queue.Task, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled = append(q.scheduled, scheduled{task: task, at: at})
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error) {
	q.mu.Lock()
	if len(q.ready) > 0 {
		task := q.ready[0]
		q.ready = q.ready[1:]
		q.mu.Unlock()
		return &task, nil
	}
	q.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (q *fakeQueue) popScheduled(t *testing.T) scheduled {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.scheduled)
	s := q.scheduled[0]
	q.scheduled = q.scheduled[1:]
	return s
}

type fakeLeases struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLeases) Acquire(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return "", false, nil
	}
	l.held[key] = true
	return "token", true, nil
}

func (l *fakeLeases) Release(_ context.Context, key, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type failingAnalyzer struct{ err error }

func (f failingAnalyzer) Analyze(context.Context, string) (analysis.Result, error) {
	return analysis.Result{}, f.err
}

// countingRunner wraps the real job to count hook invocations.
type countingRunner struct {
	*enrichment.Job
	runs   int
	failed int
}

func (c *countingRunner) Run(ctx context.Context, ticket *domain.Ticket) error {
	c.runs++
	return c.Job.Run(ctx, ticket)
}

func (c *countingRunner) Failed(ctx context.Context, id string, cause error) error {
	c.failed++
	return c.Job.Failed(ctx, id, cause)
}

type fixture struct {
	store   *memory.Store
	ticket  *domain.Ticket
	queue   *fakeQueue
	leases  *fakeLeases
	runner  *countingRunner
	metrics *observability.Metrics
	pool    *Pool
	now     time.Time
}

func newFixture(t *testing.T, analyzer analysis.Analyzer, description string) *fixture {
	t.Helper()
	store := memory.NewSeededStore()
	user := domain.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(context.Background(), &user))
	ticket := &domain.Ticket{
		UserID:      user.ID,
		Title:       "Help",
		Description: description,
		Status:      domain.TicketStatusOpen,
		AiStatus:    domain.AiStatusQueued,
	}
	require.NoError(t, store.Tickets().Create(context.Background(), ticket))

	if analyzer == nil {
		analyzer = analysis.NewHeuristicAnalyzer(store.Categories())
	}
	metrics := observability.NewMetrics()
	runner := &countingRunner{Job: enrichment.NewJob(store.Tickets(), analyzer, nil, nil, metrics)}
	q := &fakeQueue{}
	leases := &fakeLeases{}
	pool, err := NewPool(Config{
		Workers:     1,
		MaxAttempts: 3,
		Backoff:     60 * time.Second,
		PollTimeout: 10 * time.Millisecond,
		LeaseRetry:  5 * time.Second,
	}, q, leases, store.Tickets(), runner, nil, nil, metrics)
	require.NoError(t, err)

	f := &fixture{store: store, ticket: ticket, queue: q, leases: leases, runner: runner, metrics: metrics, pool: pool}
	f.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return f.now }
	return f
}

func TestHandle_Success(t *testing.T) {
	f := newFixture(t, nil, "Thank you so much for your excellent support!")

	require.NoError(t, f.pool.Handle(context.Background(), queue.NewTask(f.ticket.ID)))

	got, err := f.store.Tickets().GetByID(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusCompleted, got.AiStatus)
	assert.Empty(t, f.queue.scheduled)
	assert.Empty(t, f.leases.held)
}

func TestHandle_RetriesThenFailsPermanentlyOnce(t *testing.T) {
	f := newFixture(t, failingAnalyzer{err: errors.New("directory unavailable")}, "anything at all")
	ctx := context.Background()

	task := queue.NewTask(f.ticket.ID)
	require.NoError(t, f.pool.Handle(ctx, task))

	first := f.queue.popScheduled(t)
	assert.Equal(t, 1, first.task.Attempt)
	assert.Equal(t, f.now.Add(60*time.Second), first.at)
	assert.Contains(t, first.task.LastError, "directory unavailable")

	got, err := f.store.Tickets().GetByID(ctx, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusFailed, got.AiStatus)

	require.NoError(t, f.pool.Handle(ctx, first.task))
	second := f.queue.popScheduled(t)
	assert.Equal(t, 2, second.task.Attempt)

	require.NoError(t, f.pool.Handle(ctx, second.task))
	assert.Empty(t, f.queue.scheduled)

	assert.Equal(t, 3, f.runner.runs)
	assert.Equal(t, 1, f.runner.failed)
	assert.EqualValues(t, 2, f.metrics.EnrichmentCount(observability.OutcomeRetried))
	assert.EqualValues(t, 1, f.metrics.EnrichmentCount(observability.OutcomePermanent))

	got, err = f.store.Tickets().GetByID(ctx, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusFailed, got.AiStatus)
	require.NotNil(t, got.AiError)
	assert.Contains(t, *got.AiError, "directory unavailable")
}

func TestHandle_DefersWhenLeaseHeld(t *testing.T) {
	f := newFixture(t, nil, "Where is my invoice?")
	_, ok, err := f.leases.Acquire(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	require.True(t, ok)

	task := queue.NewTask(f.ticket.ID)
	require.NoError(t, f.pool.Handle(context.Background(), task))

	deferred := f.queue.popScheduled(t)
	assert.Equal(t, 0, deferred.task.Attempt)
	assert.Equal(t, f.now.Add(5*time.Second), deferred.at)
	assert.Equal(t, 0, f.runner.runs)
	assert.EqualValues(t, 1, f.metrics.EnrichmentCount(observability.OutcomeDeferred))
}

func TestHandle_DropsMissingTicket(t *testing.T) {
	f := newFixture(t, nil, "anything at all")

	require.NoError(t, f.pool.Handle(context.Background(), queue.NewTask("00000000-0000-0000-0000-000000000000")))
	assert.Empty(t, f.queue.scheduled)
	assert.Equal(t, 0, f.runner.failed)
}

func TestPool_StartProcessesEnqueuedTasks(t *testing.T) {
	f := newFixture(t, nil, "I was charged twice for my subscription. Please process a refund.")
	dispatcher := events.NewInMemoryDispatcher()
	RegisterEnqueuer(dispatcher, f.queue, zap.NewNop())
	require.NoError(t, dispatcher.Publish(context.Background(),
		events.NewEvent(events.EventTicketCreated, f.ticket.ID, events.SystemActor, nil)))

	f.pool.Start()
	require.Eventually(t, func() bool {
		got, err := f.store.Tickets().GetByID(context.Background(), f.ticket.ID)
		return err == nil && got.AiStatus == domain.AiStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.pool.Stop(ctx))

	got, err := f.store.Tickets().GetByID(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryName)
	assert.Equal(t, "Billing", *got.CategoryName)
}

func TestNewPool_RejectsBadConfig(t *testing.T) {
	_, err := NewPool(Config{Workers: 0, MaxAttempts: 3, PollTimeout: time.Second}, &fakeQueue{}, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}
