package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
)

// HistoryService keeps the per-ticket audit trail of lifecycle and
// enrichment changes.
type HistoryService struct {
	history repository.TicketHistoryRepository
	tickets *TicketService
	logger  *zap.Logger
}

// NewHistoryService constructs the service.
func NewHistoryService(history repository.TicketHistoryRepository, tickets *TicketService, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{history: history, tickets: tickets, logger: logger}
}

// RegisterHandlers records every ticket event the dispatcher carries.
func (h *HistoryService) RegisterHandlers(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketEnriched,
		events.EventTicketEnrichmentFailed,
		events.EventTicketEnrichmentRetrying,
	} {
		dispatcher.Subscribe(eventType, h.record)
	}
}

// ListForUser returns the trail of a ticket the user owns, oldest first.
func (h *HistoryService) ListForUser(ctx context.Context, userID, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := h.tickets.GetTicketForUser(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	return h.history.ListByTicket(ctx, ticket.ID)
}

// record never fails the publisher; a lost audit entry is logged.
func (h *HistoryService) record(ctx context.Context, event events.Event) error {
	entry, ok := historyEntry(event)
	if !ok {
		return nil
	}
	if err := h.history.Create(ctx, &entry); err != nil {
		h.logger.Warn("ticket history not recorded",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
	return nil
}

func historyEntry(event events.Event) (domain.TicketHistory, bool) {
	entry := domain.TicketHistory{
		TicketID:    event.TicketID,
		ChangedByID: event.Actor.UserID,
	}
	switch p := event.Payload.(type) {
	case events.TicketCreatedPayload:
		entry.ChangeType = domain.ChangeTypeCreated
		entry.NewValue = map[string]any{"title": p.Title, "status": domain.TicketStatusOpen, "ai_status": domain.AiStatusQueued}
	case events.TicketStatusChangedPayload:
		entry.ChangeType = domain.ChangeTypeStatus
		entry.OldValue = map[string]any{"status": p.OldStatus}
		entry.NewValue = map[string]any{"status": p.NewStatus}
	case events.TicketEnrichedPayload:
		entry.ChangeType = domain.ChangeTypeEnriched
		entry.NewValue = map[string]any{"category": p.Category, "sentiment": p.Sentiment, "urgency": p.Urgency}
	case events.TicketEnrichmentFailedPayload:
		entry.ChangeType = domain.ChangeTypeEnrichmentFailed
		if event.Type == events.EventTicketEnrichmentRetrying {
			entry.ChangeType = domain.ChangeTypeEnrichmentRetried
		}
		entry.NewValue = map[string]any{"error": p.Error, "attempt": p.Attempt, "permanent": p.Permanent}
	default:
		return domain.TicketHistory{}, false
	}
	return entry, true
}
