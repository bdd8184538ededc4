package domain

// AiStatus tracks where a ticket is in the enrichment pipeline.
type AiStatus string

const (
	AiStatusQueued     AiStatus = "queued"
	AiStatusProcessing AiStatus = "processing"
	AiStatusCompleted  AiStatus = "completed"
	AiStatusFailed     AiStatus = "failed"
)

// aiTransitions holds the forward edges of the enrichment state machine.
// failed -> processing is a retry re-entry; nothing leads back to queued.
var aiTransitions = map[AiStatus][]AiStatus{
	AiStatusQueued:     {AiStatusProcessing},
	AiStatusProcessing: {AiStatusCompleted, AiStatusFailed},
	AiStatusFailed:     {AiStatusProcessing, AiStatusFailed},
	AiStatusCompleted:  {},
}

// Valid reports whether s is a known enrichment status.
func (s AiStatus) Valid() bool {
	_, ok := aiTransitions[s]
	return ok
}

// IsTerminal reports whether no further automatic transition follows s for
// the current attempt.
func (s AiStatus) IsTerminal() bool {
	return s == AiStatusCompleted || s == AiStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s AiStatus) CanTransitionTo(next AiStatus) bool {
	for _, allowed := range aiTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Label returns the human readable status name.
func (s AiStatus) Label() string {
	switch s {
	case AiStatusQueued:
		return "Queued"
	case AiStatusProcessing:
		return "Processing"
	case AiStatusCompleted:
		return "Completed"
	case AiStatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}
