package classify

import (
	"context"
	"strings"
)

// Rule maps a keyword to the candidates returned when complaint text
// contains it. Rules are checked in order; the first hit wins.
type Rule struct {
	Keyword    string
	Candidates []Candidate
}

// Static is a deterministic keyword classifier for tests and deployments
// without a trained artifact.
type Static struct {
	rules []Rule
	topK  int
}

// NewStatic builds a keyword classifier. With no rules it falls back to a
// small built-in table.
func NewStatic(topK int, rules ...Rule) *Static {
	if topK < 1 {
		topK = 3
	}
	if len(rules) == 0 {
		rules = defaultRules
	}
	return &Static{rules: rules, topK: topK}
}

var defaultRules = []Rule{
	{Keyword: "overcharg", Candidates: []Candidate{
		{Category: "Billing", SubCategory: "Overcharge", Confidence: 0.81},
		{Category: "Billing", SubCategory: "DuplicatePayment", Confidence: 0.09},
	}},
	{Keyword: "bill", Candidates: []Candidate{
		{Category: "Billing", SubCategory: "Overcharge", Confidence: 0.62},
		{Category: "Billing", SubCategory: "DuplicatePayment", Confidence: 0.21},
	}},
	{Keyword: "outage", Candidates: []Candidate{
		{Category: "Service", SubCategory: "Outage", Confidence: 0.77},
	}},
	{Keyword: "power", Candidates: []Candidate{
		{Category: "Service", SubCategory: "Outage", Confidence: 0.58},
	}},
	{Keyword: "broker", Candidates: []Candidate{
		{Category: "Trading", SubCategory: "UnauthorizedTrade", Confidence: 0.71},
	}},
	{Keyword: "trade", Candidates: []Candidate{
		{Category: "Trading", SubCategory: "UnauthorizedTrade", Confidence: 0.59},
	}},
}

func (s *Static) Classify(_ context.Context, text string) ([]Candidate, error) {
	lower := strings.ToLower(text)
	for _, r := range s.rules {
		if strings.Contains(lower, strings.ToLower(r.Keyword)) {
			out := make([]Candidate, len(r.Candidates))
			copy(out, r.Candidates)
			sortCandidates(out)
			if len(out) > s.topK {
				out = out[:s.topK]
			}
			return out, nil
		}
	}
	// nothing matched: one low-confidence guess forces explicit choice
	return []Candidate{{Category: "General", SubCategory: "Other", Confidence: 0.30}}, nil
}
