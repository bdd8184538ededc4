package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/observability"
)

// ProviderAnalyzer asks a text-generation provider first and falls back to
// the heuristic on any provider-path failure.
type ProviderAnalyzer struct {
	completer  Completer
	prompts    *PromptBuilder
	categories CategoryDirectory
	fallback   Analyzer
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewProviderAnalyzer wires the provider path around fallback.
func NewProviderAnalyzer(
	completer Completer,
	prompts *PromptBuilder,
	categories CategoryDirectory,
	fallback Analyzer,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ProviderAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderAnalyzer{
		completer:  completer,
		prompts:    prompts,
		categories: categories,
		fallback:   fallback,
		breaker:    newProviderBreaker(logger),
		logger:     logger,
		metrics:    metrics,
	}
}

func newProviderBreaker(logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Analyze never returns ErrAnalyzerUnavailable; such failures are answered by
// the heuristic instead.
func (p *ProviderAnalyzer) Analyze(ctx context.Context, description string) (Result, error) {
	result, err := p.analyzeWithProvider(ctx, description)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, ErrAnalyzerUnavailable) {
		return Result{}, err
	}

	p.logger.Warn("provider analysis failed, using heuristic", zap.Error(err))
	p.metrics.RecordEnrichment(observability.OutcomeFallback)
	return p.fallback.Analyze(ctx, description)
}

func (p *ProviderAnalyzer) analyzeWithProvider(ctx context.Context, description string) (Result, error) {
	system, err := p.prompts.Build(ctx)
	if err != nil {
		return Result{}, unavailable("prompt", err)
	}

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		return p.completer.Complete(ctx, system, description)
	})
	if err != nil {
		return Result{}, unavailable("request", err)
	}

	parsed, err := parseProviderContent(raw.(string))
	if err != nil {
		return Result{}, unavailable("parse", err)
	}

	categoryID, err := resolveCategory(ctx, p.categories, parsed.Category)
	if err != nil {
		return Result{}, unavailable("category", err)
	}

	return Result{
		CategoryID: categoryID,
		Category:   parsed.Category,
		Sentiment:  parsed.Sentiment,
		Urgency:    parsed.Urgency,
		Reply:      parsed.Reply,
	}, nil
}
