// Package analysis turns a ticket description into category, sentiment,
// urgency and a suggested reply.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

// DefaultCategory is used when the provider omits a category.
const DefaultCategory = "General"

// DefaultReply is used when the provider omits a reply.
const DefaultReply = "Thank you for contacting us."

// Result is the outcome of one analysis. CategoryID is nil when the chosen
// category name does not match an active category.
type Result struct {
	CategoryID *string
	Category   string
	Sentiment  domain.Sentiment
	Urgency    domain.Urgency
	Reply      string
}

// Validate checks the result against the fixed value sets.
func (r Result) Validate() error {
	if !r.Sentiment.Valid() {
		return fmt.Errorf("invalid sentiment %q", r.Sentiment)
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("invalid urgency %q", r.Urgency)
	}
	if r.Reply == "" {
		return errors.New("empty reply")
	}
	return nil
}

// Analyzer produces a Result for a ticket description.
type Analyzer interface {
	Analyze(ctx context.Context, description string) (Result, error)
}

// CategoryDirectory resolves category names against active categories.
type CategoryDirectory interface {
	ListActiveNames(ctx context.Context) ([]string, error)
	FindActiveByNameOrSlug(ctx context.Context, name string) (*domain.Category, error)
}

// PromptSource supplies the configured system prompt. An empty string means
// none is active.
type PromptSource interface {
	ActiveSystemPrompt(ctx context.Context) (string, error)
}

// Completer sends a system instruction and user message to a text-generation
// provider and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrAnalyzerUnavailable marks any provider-path failure. It never leaves
// ProviderAnalyzer.
var ErrAnalyzerUnavailable = errors.New("analyzer unavailable")

// UnavailableError carries the stage and cause of a provider-path failure.
type UnavailableError struct {
	Stage string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("analyzer unavailable (%s): %v", e.Stage, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrAnalyzerUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrAnalyzerUnavailable }

func unavailable(stage string, err error) error {
	return &UnavailableError{Stage: stage, Err: err}
}

// resolveCategory looks name up in dir and returns the matched id, if any.
func resolveCategory(ctx context.Context, dir CategoryDirectory, name string) (*string, error) {
	category, err := dir.FindActiveByNameOrSlug(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve category %q: %w", name, err)
	}
	if category == nil {
		return nil, nil
	}
	id := category.ID
	return &id, nil
}
