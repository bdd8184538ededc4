package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

// PromptBuilder assembles the system instruction sent to the provider.
type PromptBuilder struct {
	prompts    PromptSource
	categories CategoryDirectory
}

// NewPromptBuilder wires the prompt and category sources.
func NewPromptBuilder(prompts PromptSource, categories CategoryDirectory) *PromptBuilder {
	return &PromptBuilder{prompts: prompts, categories: categories}
}

// Build reads the active prompt and categories and renders the instruction.
func (b *PromptBuilder) Build(ctx context.Context) (string, error) {
	base, err := b.prompts.ActiveSystemPrompt(ctx)
	if err != nil {
		return "", fmt.Errorf("load system prompt: %w", err)
	}
	names, err := b.categories.ListActiveNames(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	return RenderSystemPrompt(base, names), nil
}

// RenderSystemPrompt appends the output contract to base. An empty base uses
// the built-in default and an empty category list offers General only.
func RenderSystemPrompt(base string, categories []string) string {
	if strings.TrimSpace(base) == "" {
		base = domain.DefaultSystemPrompt
	}
	if len(categories) == 0 {
		categories = []string{DefaultCategory}
	}

	sentiments := make([]string, 0, len(domain.Sentiments))
	for _, s := range domain.Sentiments {
		sentiments = append(sentiments, string(s))
	}
	urgencies := make([]string, 0, len(domain.Urgencies))
	for _, u := range domain.Urgencies {
		urgencies = append(urgencies, string(u))
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nYour response must be valid JSON with these exact keys:\n")
	sb.WriteString("- category: One of " + quoteList(categories) + "\n")
	sb.WriteString("- sentiment: One of " + quoteList(sentiments) + "\n")
	sb.WriteString("- urgency: One of " + quoteList(urgencies) + " (based on sentiment and content)\n")
	sb.WriteString("- reply: A helpful, professional response to the customer\n\n")
	sb.WriteString("Example format:\n")
	fmt.Fprintf(&sb, `{"category": %q, "sentiment": %q, "urgency": "medium", "reply": "We understand..."}`,
		categories[0], string(domain.SentimentNeutral))
	sb.WriteString("\n\nAnalyze this ticket:")
	return sb.String()
}

func quoteList(values []string) string {
	return `"` + strings.Join(values, `", "`) + `"`
}
