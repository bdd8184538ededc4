package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-enrichment/internal/analysis"
	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/observability"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
	"github.com/spec-kit/ticket-enrichment/internal/repository/memory"
)

type stubAnalyzer struct {
	result analysis.Result
	err    error
}

func (s *stubAnalyzer) Analyze(context.Context, string) (analysis.Result, error) {
	return s.result, s.err
}

// statusProbe records the ticket status observed while analysis runs.
type statusProbe struct {
	inner    analysis.Analyzer
	store    repository.TicketRepository
	ticketID string
	observed domain.AiStatus
}

func (p *statusProbe) Analyze(ctx context.Context, description string) (analysis.Result, error) {
	t, err := p.store.GetByID(ctx, p.ticketID)
	if err != nil {
		return analysis.Result{}, err
	}
	p.observed = t.AiStatus
	return p.inner.Analyze(ctx, description)
}

func setup(t *testing.T, description string) (*memory.Store, *domain.Ticket) {
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
	return store, ticket
}

func TestRun_Success(t *testing.T) {
	ctx := context.Background()
	store, ticket := setup(t, "My computer is not working and I need help immediately.")
	probe := &statusProbe{
		inner:    analysis.NewHeuristicAnalyzer(store.Categories()),
		store:    store.Tickets(),
		ticketID: ticket.ID,
	}
	dispatcher := events.NewInMemoryDispatcher()
	var enriched []events.Event
	dispatcher.Subscribe(events.EventTicketEnriched, func(_ context.Context, e events.Event) error {
		enriched = append(enriched, e)
		return nil
	})
	metrics := observability.NewMetrics()
	job := NewJob(store.Tickets(), probe, dispatcher, nil, metrics)

	require.NoError(t, job.Run(ctx, ticket))

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusProcessing, probe.observed)
	assert.Equal(t, domain.AiStatusCompleted, got.AiStatus)
	assert.Nil(t, got.AiError)
	require.NotNil(t, got.CategoryName)
	assert.Equal(t, "Technical", *got.CategoryName)
	assert.Equal(t, domain.SentimentNegative, *got.Sentiment)
	assert.Equal(t, domain.UrgencyHigh, *got.Urgency)
	require.NotNil(t, got.SuggestedReply)
	assert.NotEmpty(t, *got.SuggestedReply)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.Len(t, enriched, 1)
	assert.EqualValues(t, 1, metrics.EnrichmentCount(observability.OutcomeCompleted))
}

func TestRun_ClearsPreviousError(t *testing.T) {
	ctx := context.Background()
	store, ticket := setup(t, "Where is my invoice for March?")
	_, err := store.Tickets().UpdateFields(ctx, ticket.ID, repository.TicketFields{
		repository.FieldAiStatus: domain.AiStatusFailed,
		repository.FieldAiError:  "timeout",
	})
	require.NoError(t, err)
	ticket.AiStatus = domain.AiStatusFailed

	job := NewJob(store.Tickets(), analysis.NewHeuristicAnalyzer(store.Categories()), nil, nil, nil)
	require.NoError(t, job.Run(ctx, ticket))

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusCompleted, got.AiStatus)
	assert.Nil(t, got.AiError)
}

func TestRun_AnalyzerErrorMarksFailed(t *testing.T) {
	ctx := context.Background()
	store, ticket := setup(t, "anything really")
	boom := errors.New("category lookup failed")
	dispatcher := events.NewInMemoryDispatcher()
	var failed []events.Event
	dispatcher.Subscribe(events.EventTicketEnrichmentFailed, func(_ context.Context, e events.Event) error {
		failed = append(failed, e)
		return nil
	})
	job := NewJob(store.Tickets(), &stubAnalyzer{err: boom}, dispatcher, nil, nil)

	err := job.Run(ctx, ticket)
	assert.ErrorIs(t, err, boom)

	got, getErr := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.AiStatusFailed, got.AiStatus)
	require.NotNil(t, got.AiError)
	assert.Contains(t, *got.AiError, "category lookup failed")
	assert.Nil(t, got.Sentiment)
	require.Len(t, failed, 1)
	assert.False(t, failed[0].Payload.(events.TicketEnrichmentFailedPayload).Permanent)
}

func TestRun_InvalidResultMarksFailed(t *testing.T) {
	ctx := context.Background()
	store, ticket := setup(t, "anything really")
	job := NewJob(store.Tickets(), &stubAnalyzer{result: analysis.Result{Sentiment: "Furious", Urgency: domain.UrgencyHigh, Reply: "x"}}, nil, nil, nil)

	assert.Error(t, job.Run(ctx, ticket))
	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusFailed, got.AiStatus)
}

func TestRun_MissingTicket(t *testing.T) {
	store, _ := setup(t, "anything really")
	job := NewJob(store.Tickets(), &stubAnalyzer{}, nil, nil, nil)
	err := job.Run(context.Background(), &domain.Ticket{ID: "missing", AiStatus: domain.AiStatusQueued})
	assert.Error(t, err)
}

func TestFailed_RecordsPermanentFailure(t *testing.T) {
	ctx := context.Background()
	store, ticket := setup(t, "anything really")
	metrics := observability.NewMetrics()
	job := NewJob(store.Tickets(), &stubAnalyzer{}, nil, nil, metrics)

	require.NoError(t, job.Failed(ctx, ticket.ID, errors.New("gave up")))

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusFailed, got.AiStatus)
	require.NotNil(t, got.AiError)
	assert.Equal(t, "gave up", *got.AiError)
	assert.EqualValues(t, 1, metrics.EnrichmentCount(observability.OutcomePermanent))
}
