package intake

import (
	"regexp"
	"strings"

	"github.com/complaintdesk/intake-engine/internal/fieldspec"
)

// negativeRe flags complaints written in anger so the next prompt can
// open with a short apology.
var negativeRe = regexp.MustCompile(`\b(angry|frustrat|fed\s*up|annoy|worst|hate|cheat|scam|not\s*working|no\s*response|delay|late|issue|problem|complain)\b`)

func sentiment(canonicalText string) string {
	if negativeRe.MatchString(strings.ToLower(canonicalText)) {
		return "neg"
	}
	return "neutral"
}

// buildSummary renders the draft for confirmation, with fields in the
// table's canonical order rather than arrival order.
func buildSummary(specs *fieldspec.Table, draft *Draft) *DraftSummary {
	sum := &DraftSummary{
		Category:    draft.Category,
		SubCategory: draft.SubCategory,
		Confidence:  draft.Confidence,
		Narrative:   draft.Narrative,
		Sentiment:   draft.Sentiment,
		Attachment:  draft.Attachment,
	}
	for _, f := range specs.Required(draft.Category, draft.SubCategory) {
		if v, ok := draft.Fields[f.Name]; ok && strings.TrimSpace(v) != "" {
			sum.Fields = append(sum.Fields, FieldValue{Name: f.Name, Value: v})
		}
	}
	return sum
}
