package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets. It is independent of
// the enrichment status.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every lifecycle status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known lifecycle status.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Sentiment is the detected tone of a ticket description.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// Sentiments lists the fixed sentiment set in the order the provider is shown.
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

// Valid reports whether s belongs to the fixed sentiment set.
func (s Sentiment) Valid() bool {
	for _, known := range Sentiments {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSentiment matches raw case-insensitively against the fixed set.
func ParseSentiment(raw string) (Sentiment, bool) {
	raw = strings.TrimSpace(raw)
	for _, known := range Sentiments {
		if strings.EqualFold(raw, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Urgency is the detected handling priority of a ticket.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Urgencies lists the fixed urgency set.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

// Valid reports whether u belongs to the fixed urgency set.
func (u Urgency) Valid() bool {
	for _, known := range Urgencies {
		if u == known {
			return true
		}
	}
	return false
}

// ParseUrgency matches raw case-insensitively against the fixed set.
func ParseUrgency(raw string) (Urgency, bool) {
	raw = strings.TrimSpace(raw)
	for _, known := range Urgencies {
		if strings.EqualFold(raw, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Ticket is the aggregate for support requests. Enrichment outputs stay nil
// until the enrichment job first completes; only AiStatusCompleted guarantees
// they are current.
type Ticket struct {
	ID             string
	UserID         string
	CategoryID     *string
	CategoryName   *string
	Title          string
	Description    string
	Status         TicketStatus
	IsStale        bool
	Sentiment      *Sentiment
	Urgency        *Urgency
	SuggestedReply *string
	AiStatus       AiStatus
	AiError        *string
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
