package dto

import (
	"time"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required,min=10"`
}

// UpdateTicketRequest payload. A missing status leaves the ticket unchanged.
type UpdateTicketRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
}

// TicketSummary is the list and create view.
type TicketSummary struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Status    domain.TicketStatus `json:"status"`
	AiStatus  domain.AiStatus     `json:"ai_status"`
	IsStale   bool                `json:"is_stale"`
	CreatedAt time.Time           `json:"created_at"`
}

// TicketDetail exposes the ticket together with its enrichment outputs.
type TicketDetail struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Status         domain.TicketStatus `json:"status"`
	IsStale        bool                `json:"is_stale"`
	Category       *string             `json:"category"`
	Sentiment      *domain.Sentiment   `json:"sentiment"`
	Urgency        *domain.Urgency     `json:"urgency"`
	SuggestedReply *string             `json:"suggested_reply"`
	AiStatus       domain.AiStatus     `json:"ai_status"`
	AiError        *string             `json:"ai_error"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TicketCreatedResponse answers POST /tickets.
type TicketCreatedResponse struct {
	Message string        `json:"message"`
	Ticket  TicketSummary `json:"ticket"`
}

// TicketUpdatedResponse answers PUT /tickets/:id.
type TicketUpdatedResponse struct {
	Message string       `json:"message"`
	Ticket  TicketDetail `json:"ticket"`
}

// PageMeta describes pagination state.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// TicketListResponse answers GET /tickets.
type TicketListResponse struct {
	Data []TicketSummary `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// NewTicketSummary maps a domain ticket.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:        ticket.ID,
		Title:     ticket.Title,
		Status:    ticket.Status,
		AiStatus:  ticket.AiStatus,
		IsStale:   ticket.IsStale,
		CreatedAt: ticket.CreatedAt,
	}
}

// NewTicketDetail maps a domain ticket.
func NewTicketDetail(ticket *domain.Ticket) TicketDetail {
	return TicketDetail{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Description:    ticket.Description,
		Status:         ticket.Status,
		IsStale:        ticket.IsStale,
		Category:       ticket.CategoryName,
		Sentiment:      ticket.Sentiment,
		Urgency:        ticket.Urgency,
		SuggestedReply: ticket.SuggestedReply,
		AiStatus:       ticket.AiStatus,
		AiError:        ticket.AiError,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

// NewTicketListResponse maps one page of tickets.
func NewTicketListResponse(page service.TicketPage) TicketListResponse {
	items := make([]TicketSummary, 0, len(page.Tickets))
	for i := range page.Tickets {
		items = append(items, NewTicketSummary(&page.Tickets[i]))
	}
	return TicketListResponse{
		Data: items,
		Meta: PageMeta{
			CurrentPage: page.Page,
			PerPage:     page.PerPage,
			Total:       page.Total,
			LastPage:    page.LastPage(),
		},
	}
}

// HistoryEntry is one audit trail item.
type HistoryEntry struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.TicketHistory) []HistoryEntry {
	items := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, HistoryEntry{
			ID:          e.ID,
			ChangeType:  e.ChangeType,
			ChangedByID: e.ChangedByID,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return items
}
