package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/repository/memory"
)

func TestHeuristic_EndToEndExamples(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSeededStore()
	h := NewHeuristicAnalyzer(store.Categories())

	t.Run("technical and urgent", func(t *testing.T) {
		res, err := h.Analyze(ctx, "My computer is not working and I need help immediately.")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentNegative, res.Sentiment)
		assert.Equal(t, domain.UrgencyHigh, res.Urgency)
		assert.Equal(t, "Technical", res.Category)
		require.NotNil(t, res.CategoryID)
	})

	t.Run("thankful general", func(t *testing.T) {
		res, err := h.Analyze(ctx, "Thank you so much for your excellent support! I love this product and it works perfectly!")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentPositive, res.Sentiment)
		assert.Equal(t, domain.UrgencyLow, res.Urgency)
		assert.Equal(t, "General", res.Category)
		assert.Equal(t, generalReply, res.Reply)
	})

	t.Run("billing matches active category", func(t *testing.T) {
		billing, err := store.Categories().FindActiveByNameOrSlug(ctx, "Billing")
		require.NoError(t, err)
		require.NotNil(t, billing)

		res, err := h.Analyze(ctx, "I was charged twice for my subscription. Please process a refund.")
		require.NoError(t, err)
		require.NotNil(t, res.CategoryID)
		assert.Equal(t, billing.ID, *res.CategoryID)
		assert.Equal(t, domain.SentimentNeutral, res.Sentiment)
		assert.Equal(t, domain.UrgencyMedium, res.Urgency)
	})
}

func TestHeuristic_Rules(t *testing.T) {
	h := NewHeuristicAnalyzer(memory.NewSeededStore().Categories())
	tests := []struct {
		name        string
		description string
		category    string
		sentiment   domain.Sentiment
		urgency     domain.Urgency
	}{
		{"urgency keyword overrides positive", "Thanks, but the site is down", "General", domain.SentimentPositive, domain.UrgencyHigh},
		{"negative wins over positive", "I hate that this great app keeps crashing", "Technical", domain.SentimentNegative, domain.UrgencyHigh},
		{"technical before billing", "There is an error on my invoice", "Technical", domain.SentimentNeutral, domain.UrgencyMedium},
		{"account", "I cannot change my password", "Account", domain.SentimentNeutral, domain.UrgencyMedium},
		{"feature request", "It would be nice to export reports", "Feature Request", domain.SentimentNeutral, domain.UrgencyMedium},
		{"case insensitive", "URGENT: PAYMENT FAILED", "Billing", domain.SentimentNeutral, domain.UrgencyHigh},
		{"no keywords", "Just checking in about the weather", "General", domain.SentimentNeutral, domain.UrgencyMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Analyze(context.Background(), tt.description)
			require.NoError(t, err)
			assert.Equal(t, tt.category, res.Category)
			assert.Equal(t, tt.sentiment, res.Sentiment)
			assert.Equal(t, tt.urgency, res.Urgency)
			assert.NoError(t, res.Validate())
		})
	}
}

func TestHeuristic_Idempotent(t *testing.T) {
	h := NewHeuristicAnalyzer(memory.NewSeededStore().Categories())
	desc := "Refund please, the checkout is broken"
	first, err := h.Analyze(context.Background(), desc)
	require.NoError(t, err)
	second, err := h.Analyze(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHeuristic_InactiveCategoryYieldsNilID(t *testing.T) {
	store := memory.NewStore()
	store.AddCategory(domain.Category{Name: "Technical", IsActive: false})
	h := NewHeuristicAnalyzer(store.Categories())

	res, err := h.Analyze(context.Background(), "Found a bug")
	require.NoError(t, err)
	assert.Equal(t, "Technical", res.Category)
	assert.Nil(t, res.CategoryID)
}

type failingDirectory struct{ err error }

func (f failingDirectory) ListActiveNames(context.Context) ([]string, error) { return nil, f.err }
func (f failingDirectory) FindActiveByNameOrSlug(context.Context, string) (*domain.Category, error) {
	return nil, f.err
}

func TestHeuristic_DirectoryFailureSurfaces(t *testing.T) {
	boom := errors.New("db down")
	h := NewHeuristicAnalyzer(failingDirectory{err: boom})
	_, err := h.Analyze(context.Background(), "anything at all")
	assert.ErrorIs(t, err, boom)
}
