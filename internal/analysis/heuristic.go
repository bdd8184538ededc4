package analysis

import (
	"context"
	"regexp"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

var (
	negativePattern = regexp.MustCompile(`(?i)(angry|frustrated|terrible|awful|worst|hate|broken|not working|fatal|crash)`)
	positivePattern = regexp.MustCompile(`(?i)(thank|great|love|excellent|awesome|perfect|happy)`)
	urgentPattern   = regexp.MustCompile(`(?i)(urgent|immediately|asap|critical|emergency|down)`)
)

type categoryRule struct {
	name    string
	pattern *regexp.Regexp
	reply   string
}

// categoryRules are evaluated in order; the first match wins.
var categoryRules = []categoryRule{
	{
		name:    "Technical",
		pattern: regexp.MustCompile(`(?i)(error|bug|crash|not working|broken|issue|problem|how to|help)`),
		reply:   "Thank you for reporting this technical issue. Our support team will investigate and get back to you with a solution.",
	},
	{
		name:    "Billing",
		pattern: regexp.MustCompile(`(?i)(payment|invoice|bill|charge|refund|price|cost|subscription)`),
		reply:   "Thank you for contacting us regarding your billing concern. Our billing team will review your request and respond shortly.",
	},
	{
		name:    "Account",
		pattern: regexp.MustCompile(`(?i)(account|login|password|email|profile|delete)`),
		reply:   "Thank you for reaching out about your account. We'll help you resolve this as quickly as possible.",
	},
	{
		name:    "Feature Request",
		pattern: regexp.MustCompile(`(?i)(feature|request|suggest|would be nice|add|implement)`),
		reply:   "Thank you for your suggestion! We've noted your feature request and will consider it for future updates.",
	},
}

const generalReply = "Thank you for contacting our support team. We appreciate your message and will respond as soon as possible."

// HeuristicAnalyzer classifies descriptions with fixed keyword rules. Its
// output depends only on the description and the category directory.
type HeuristicAnalyzer struct {
	categories CategoryDirectory
}

// NewHeuristicAnalyzer builds the keyword analyzer.
func NewHeuristicAnalyzer(categories CategoryDirectory) *HeuristicAnalyzer {
	return &HeuristicAnalyzer{categories: categories}
}

// Analyze only fails when the category lookup fails.
func (h *HeuristicAnalyzer) Analyze(ctx context.Context, description string) (Result, error) {
	sentiment := DetectSentiment(description)
	name, reply := classify(description)

	categoryID, err := resolveCategory(ctx, h.categories, name)
	if err != nil {
		return Result{}, err
	}

	return Result{
		CategoryID: categoryID,
		Category:   name,
		Sentiment:  sentiment,
		Urgency:    DetectUrgency(description, sentiment),
		Reply:      reply,
	}, nil
}

// DetectSentiment checks negative keywords before positive ones.
func DetectSentiment(description string) domain.Sentiment {
	switch {
	case negativePattern.MatchString(description):
		return domain.SentimentNegative
	case positivePattern.MatchString(description):
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

// DetectUrgency derives urgency from sentiment, then raises it to high on
// any urgency keyword.
func DetectUrgency(description string, sentiment domain.Sentiment) domain.Urgency {
	if urgentPattern.MatchString(description) {
		return domain.UrgencyHigh
	}
	switch sentiment {
	case domain.SentimentNegative:
		return domain.UrgencyHigh
	case domain.SentimentPositive:
		return domain.UrgencyLow
	default:
		return domain.UrgencyMedium
	}
}

func classify(description string) (string, string) {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(description) {
			return rule.name, rule.reply
		}
	}
	return DefaultCategory, generalReply
}
