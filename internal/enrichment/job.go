// Package enrichment drives a single ticket through the enrichment state
// machine.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/analysis"
	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/observability"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
)

// TicketStore is the slice of the ticket repository the job writes through.
type TicketStore interface {
	UpdateFields(ctx context.Context, id string, fields repository.TicketFields) (*domain.Ticket, error)
}

// Job enriches tickets. It is safe for concurrent use across tickets.
type Job struct {
	tickets    TicketStore
	analyzer   analysis.Analyzer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewJob wires the job. dispatcher and metrics may be nil.
func NewJob(tickets TicketStore, analyzer analysis.Analyzer, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		tickets:    tickets,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run performs one enrichment attempt. Any returned error means the attempt
// failed and the ticket was left in failed with the message recorded,
// unless the store itself was unreachable.
func (j *Job) Run(ctx context.Context, ticket *domain.Ticket) error {
	log := j.logger.With(zap.String("ticket_id", ticket.ID))

	if !ticket.AiStatus.CanTransitionTo(domain.AiStatusProcessing) {
		log.Warn("re-running enrichment outside the usual transition",
			zap.String("ai_status", string(ticket.AiStatus)))
	}

	if _, err := j.tickets.UpdateFields(ctx, ticket.ID, repository.TicketFields{
		repository.FieldAiStatus: domain.AiStatusProcessing,
	}); err != nil {
		return fmt.Errorf("mark ticket %s processing: %w", ticket.ID, err)
	}

	started := time.Now()
	result, err := j.analyzer.Analyze(ctx, ticket.Description)
	j.metrics.RecordAnalysis(time.Since(started))
	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		return j.fail(ctx, ticket.ID, fmt.Errorf("analyze ticket: %w", err))
	}

	updated, err := j.tickets.UpdateFields(ctx, ticket.ID, repository.TicketFields{
		repository.FieldCategoryID:     result.CategoryID,
		repository.FieldSentiment:      result.Sentiment,
		repository.FieldUrgency:        result.Urgency,
		repository.FieldSuggestedReply: result.Reply,
		repository.FieldAiStatus:       domain.AiStatusCompleted,
		repository.FieldAiError:        nil,
	})
	if err != nil {
		return j.fail(ctx, ticket.ID, fmt.Errorf("persist enrichment: %w", err))
	}

	j.metrics.RecordEnrichment(observability.OutcomeCompleted)
	log.Info("ticket enriched",
		zap.String("category", result.Category),
		zap.String("sentiment", string(result.Sentiment)),
		zap.String("urgency", string(result.Urgency)))
	j.publish(ctx, events.NewEvent(events.EventTicketEnriched, updated.ID, events.SystemActor, events.TicketEnrichedPayload{
		CategoryID: result.CategoryID,
		Category:   result.Category,
		Sentiment:  result.Sentiment,
		Urgency:    result.Urgency,
	}))
	return nil
}

// Failed is the permanent-failure hook, called once retries are exhausted.
// It records the final message regardless of the current status.
func (j *Job) Failed(ctx context.Context, ticketID string, cause error) error {
	message := errorMessage(cause)
	if _, err := j.tickets.UpdateFields(ctx, ticketID, repository.TicketFields{
		repository.FieldAiStatus: domain.AiStatusFailed,
		repository.FieldAiError:  message,
	}); err != nil {
		return fmt.Errorf("mark ticket %s permanently failed: %w", ticketID, err)
	}

	j.metrics.RecordEnrichment(observability.OutcomePermanent)
	j.logger.Error("ticket enrichment failed permanently",
		zap.String("ticket_id", ticketID),
		zap.String("error", message))
	j.publish(ctx, events.NewEvent(events.EventTicketEnrichmentFailed, ticketID, events.SystemActor, events.TicketEnrichmentFailedPayload{
		Error:     message,
		Permanent: true,
	}))
	return nil
}

// fail records cause on the ticket and returns it so the worker retries.
func (j *Job) fail(ctx context.Context, ticketID string, cause error) error {
	message := errorMessage(cause)
	j.metrics.RecordEnrichment(observability.OutcomeFailed)
	j.logger.Warn("ticket enrichment attempt failed",
		zap.String("ticket_id", ticketID),
		zap.Error(cause))

	if _, err := j.tickets.UpdateFields(ctx, ticketID, repository.TicketFields{
		repository.FieldAiStatus: domain.AiStatusFailed,
		repository.FieldAiError:  message,
	}); err != nil {
		return errors.Join(cause, fmt.Errorf("mark ticket %s failed: %w", ticketID, err))
	}

	j.publish(ctx, events.NewEvent(events.EventTicketEnrichmentFailed, ticketID, events.SystemActor, events.TicketEnrichmentFailedPayload{
		Error: message,
	}))
	return cause
}

func (j *Job) publish(ctx context.Context, event events.Event) {
	if j.dispatcher == nil {
		return
	}
	if err := j.dispatcher.Publish(ctx, event); err != nil {
		j.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
