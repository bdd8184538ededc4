package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

var errNoJSONObject = errors.New("no JSON object in provider response")

// providerPayload mirrors the keys the system instruction asks for. Pointers
// tell an absent key from an empty one.
type providerPayload struct {
	Category  *string `json:"category"`
	Sentiment *string `json:"sentiment"`
	Urgency   *string `json:"urgency"`
	Reply     *string `json:"reply"`
}

// extractJSONObject returns the first balanced {...} in content, skipping
// braces inside string literals. If no balanced object closes it falls back
// to the span from the first '{' to the last '}'.
func extractJSONObject(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", errNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	end := strings.LastIndexByte(content, '}')
	if end <= start {
		return "", errNoJSONObject
	}
	return content[start : end+1], nil
}

// parsedAnalysis is the provider answer with defaults applied, before the
// category is resolved.
type parsedAnalysis struct {
	Category  string
	Sentiment domain.Sentiment
	Urgency   domain.Urgency
	Reply     string
}

func parseProviderContent(content string) (parsedAnalysis, error) {
	raw, err := extractJSONObject(strings.TrimSpace(content))
	if err != nil {
		return parsedAnalysis{}, err
	}

	var payload providerPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return parsedAnalysis{}, fmt.Errorf("decode provider JSON: %w", err)
	}

	out := parsedAnalysis{
		Category:  DefaultCategory,
		Sentiment: domain.SentimentNeutral,
		Urgency:   domain.UrgencyMedium,
		Reply:     DefaultReply,
	}
	if v := trimmed(payload.Category); v != "" {
		out.Category = v
	}
	if v := trimmed(payload.Sentiment); v != "" {
		if s, ok := domain.ParseSentiment(v); ok {
			out.Sentiment = s
		}
	}
	if v := trimmed(payload.Urgency); v != "" {
		if u, ok := domain.ParseUrgency(v); ok {
			out.Urgency = u
		}
	}
	if v := trimmed(payload.Reply); v != "" {
		out.Reply = v
	}
	return out, nil
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
