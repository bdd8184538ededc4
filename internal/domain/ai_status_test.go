package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAiStatus_ForwardOnly(t *testing.T) {
	assert.True(t, AiStatusQueued.CanTransitionTo(AiStatusProcessing))
	assert.True(t, AiStatusProcessing.CanTransitionTo(AiStatusCompleted))
	assert.True(t, AiStatusProcessing.CanTransitionTo(AiStatusFailed))
	assert.True(t, AiStatusFailed.CanTransitionTo(AiStatusProcessing), "retry re-enters processing")

	for _, from := range []AiStatus{AiStatusProcessing, AiStatusCompleted, AiStatusFailed} {
		assert.False(t, from.CanTransitionTo(AiStatusQueued), "%s must not revert to queued", from)
	}
	assert.False(t, AiStatusQueued.CanTransitionTo(AiStatusCompleted))
	assert.False(t, AiStatusCompleted.CanTransitionTo(AiStatusProcessing))
}

func TestAiStatus_Terminal(t *testing.T) {
	assert.True(t, AiStatusCompleted.IsTerminal())
	assert.True(t, AiStatusFailed.IsTerminal())
	assert.False(t, AiStatusQueued.IsTerminal())
	assert.False(t, AiStatusProcessing.IsTerminal())
	assert.False(t, AiStatus("bogus").Valid())
}

func TestParseSentimentAndUrgency(t *testing.T) {
	s, ok := ParseSentiment(" negative ")
	assert.True(t, ok)
	assert.Equal(t, SentimentNegative, s)

	_, ok = ParseSentiment("furious")
	assert.False(t, ok)

	u, ok := ParseUrgency("HIGH")
	assert.True(t, ok)
	assert.Equal(t, UrgencyHigh, u)

	_, ok = ParseUrgency("")
	assert.False(t, ok)
}

func TestTicketStatus_Valid(t *testing.T) {
	assert.True(t, TicketStatusInProgress.Valid())
	assert.False(t, TicketStatus("OPEN").Valid())
}
