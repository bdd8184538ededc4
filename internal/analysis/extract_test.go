package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, false},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Sure! {"a":{"b":2}} hope this helps {x}`, `{"a":{"b":2}}`, false},
		{"brace inside string", `{"reply":"use } carefully"}`, `{"reply":"use } carefully"}`, false},
		{"escaped quote", `{"reply":"say \"hi\" }"}`, `{"reply":"say \"hi\" }"}`, false},
		{"unbalanced falls back to last brace", `{"a":{"b":1}`, `{"a":{"b":1}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProviderContent_Defaults(t *testing.T) {
	got, err := parseProviderContent(`{"sentiment":"  ", "urgency":"extreme"}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, got.Category)
	assert.Equal(t, domain.SentimentNeutral, got.Sentiment)
	assert.Equal(t, domain.UrgencyMedium, got.Urgency)
	assert.Equal(t, DefaultReply, got.Reply)
}

func TestParseProviderContent_NormalizesCase(t *testing.T) {
	got, err := parseProviderContent(`{"category":"Billing","sentiment":"negative","urgency":"HIGH","reply":"On it."}`)
	require.NoError(t, err)
	assert.Equal(t, "Billing", got.Category)
	assert.Equal(t, domain.SentimentNegative, got.Sentiment)
	assert.Equal(t, domain.UrgencyHigh, got.Urgency)
	assert.Equal(t, "On it.", got.Reply)
}

func TestParseProviderContent_InvalidJSON(t *testing.T) {
	_, err := parseProviderContent(`{"category": Billing}`)
	assert.Error(t, err)
}
