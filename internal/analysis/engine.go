package analysis

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/config"
	"github.com/spec-kit/ticket-enrichment/internal/observability"
)

// Sources bundles the read-only collaborators both strategies need.
type Sources struct {
	Categories CategoryDirectory
	Prompts    PromptSource
	HTTPClient *http.Client
}

// NewEngine picks the strategy once: the provider path when a credential is
// configured, the heuristic otherwise.
func NewEngine(cfg config.AIConfig, src Sources, logger *zap.Logger, metrics *observability.Metrics) Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	heuristic := NewHeuristicAnalyzer(src.Categories)
	if !cfg.ProviderEnabled() {
		logger.Info("AI provider not configured; using heuristic analysis")
		return heuristic
	}

	logger.Info("using AI provider for analysis",
		zap.String("model", cfg.Model),
		zap.String("base_url", cfg.BaseURL))
	return NewProviderAnalyzer(
		NewOpenAIClient(cfg, src.HTTPClient),
		NewPromptBuilder(src.Prompts, src.Categories),
		src.Categories,
		heuristic,
		logger.Named("analysis"),
		metrics,
	)
}
