package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated           TicketChangeType = "created"
	ChangeTypeStatus            TicketChangeType = "status_change"
	ChangeTypeEnriched          TicketChangeType = "enriched"
	ChangeTypeEnrichmentFailed  TicketChangeType = "enrichment_failed"
	ChangeTypeEnrichmentRetried TicketChangeType = "enrichment_retried"
)

// TicketHistory is an immutable audit trail entry. A nil ChangedByID means
// the system made the change.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangedByID *string
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
