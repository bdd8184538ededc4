package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventTicketEnriched           EventType = "ticket_enriched"
	EventTicketEnrichmentFailed   EventType = "ticket_enrichment_failed"
	EventTicketEnrichmentRetrying EventType = "ticket_enrichment_retrying"
)

// Actor encapsulates actor metadata for an event. A nil UserID means the
// system acted.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
}

// SystemActor is the actor for worker and scheduler events.
var SystemActor = Actor{}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketEnrichedPayload payload.
type TicketEnrichedPayload struct {
	CategoryID *string          `json:"category_id,omitempty"`
	Category   string           `json:"category"`
	Sentiment  domain.Sentiment `json:"sentiment"`
	Urgency    domain.Urgency   `json:"urgency"`
}

// TicketEnrichmentFailedPayload payload. Permanent is set once retries are
// exhausted.
type TicketEnrichmentFailedPayload struct {
	Error     string `json:"error"`
	Attempt   int    `json:"attempt,omitempty"`
	Permanent bool   `json:"permanent"`
}
