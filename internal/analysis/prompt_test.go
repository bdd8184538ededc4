package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/repository/memory"
)

func TestRenderSystemPrompt(t *testing.T) {
	got := RenderSystemPrompt("Be kind.", []string{"Technical", "Billing"})

	want := "Be kind.\n\nYour response must be valid JSON with these exact keys:\n" +
		"- category: One of \"Technical\", \"Billing\"\n" +
		"- sentiment: One of \"Positive\", \"Neutral\", \"Negative\"\n" +
		"- urgency: One of \"low\", \"medium\", \"high\" (based on sentiment and content)\n" +
		"- reply: A helpful, professional response to the customer\n\n" +
		"Example format:\n" +
		`{"category": "Technical", "sentiment": "Neutral", "urgency": "medium", "reply": "We understand..."}` +
		"\n\nAnalyze this ticket:"
	assert.Equal(t, want, got)
}

func TestRenderSystemPrompt_Fallbacks(t *testing.T) {
	got := RenderSystemPrompt("  ", nil)
	assert.True(t, strings.HasPrefix(got, domain.DefaultSystemPrompt))
	assert.Contains(t, got, `- category: One of "General"`)
}

func TestPromptBuilder_UsesActiveSettings(t *testing.T) {
	store := memory.NewSeededStore()
	store.SetSystemPrompt("Custom instructions.", true)
	b := NewPromptBuilder(store.Prompts(), store.Categories())

	got, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Custom instructions."))
	assert.Contains(t, got, `"Technical", "Billing", "General", "Account", "Feature Request"`)

	store.SetSystemPrompt("Disabled.", false)
	got, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, domain.DefaultSystemPrompt))
}
