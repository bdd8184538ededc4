package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
	apperrors "github.com/spec-kit/ticket-enrichment/pkg/util/errorutil"
)

// DefaultPerPage is the page size when the caller gives none.
const DefaultPerPage = 15

// MaxPerPage caps the page size.
const MaxPerPage = 100

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// TicketPage is one page of a user's tickets.
type TicketPage struct {
	Tickets []domain.Ticket
	Total   int
	Page    int
	PerPage int
}

// LastPage returns the number of the final page, at least 1.
func (p TicketPage) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket stores a new open, queued ticket and announces it so exactly
// one enrichment task is enqueued.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		UserID:      userID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		AiStatus:    domain.AiStatusQueued,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		event := events.NewEvent(events.EventTicketCreated, ticket.ID, userActor(userID), events.TicketCreatedPayload{
			UserID: userID,
			Title:  ticket.Title,
		})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			return nil, fmt.Errorf("queue enrichment for ticket %s: %w", ticket.ID, err)
		}
	}
	return ticket, nil
}

// ListUserTickets returns the user's tickets newest first.
func (s *TicketService) ListUserTickets(ctx context.Context, userID string, page, perPage int) (TicketPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	tickets, total, err := s.tickets.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return TicketPage{}, err
	}
	return TicketPage{Tickets: tickets, Total: total, Page: page, PerPage: perPage}, nil
}

// GetTicketForUser fetches a ticket ensuring ownership. Tickets owned by
// someone else are reported as missing.
func (s *TicketService) GetTicketForUser(ctx context.Context, userID, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.tickets.GetForUser(ctx, ticketID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ticketNotFound(ticketID)
	}
	return ticket, err
}

// UpdateStatus changes the lifecycle status. Enrichment fields are untouched.
func (s *TicketService) UpdateStatus(ctx context.Context, userID, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status": []string{"invalid status"},
		}).WithKey("tickets.invalid_status")
	}

	ticket, err := s.GetTicketForUser(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == newStatus {
		return ticket, nil
	}

	oldStatus := ticket.Status
	updated, err := s.tickets.UpdateFields(ctx, ticket.ID, repository.TicketFields{
		repository.FieldStatus: newStatus,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ticketNotFound(ticketID)
	}
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, userActor(userID), events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}))
	return updated, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{UserID: &userID}
}

func ticketNotFound(ticketID string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID}).WithKey("tickets.not_found")
}
