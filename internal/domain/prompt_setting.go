package domain

import "time"

// SystemPromptKey identifies the prompt setting used to instruct the provider.
const SystemPromptKey = "system_prompt"

// DefaultSystemPrompt is used when no active system prompt setting exists.
const DefaultSystemPrompt = "You are a helpful customer support agent. Analyze the support ticket and respond with ONLY valid JSON (no markdown formatting, no explanations)."

// PromptSetting is a keyed, switchable piece of prompt configuration.
type PromptSetting struct {
	ID          string
	Key         string
	Value       string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
