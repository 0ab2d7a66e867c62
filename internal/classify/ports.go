package classify

import (
	"context"
	"sort"
)

// Candidate is one ranked classification result.
type Candidate struct {
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category"`
	Confidence  float64 `json:"confidence"`
}

// Classifier ranks complaint text into category candidates, best first.
// Implementations must be deterministic: identical text always yields the
// identical ordered list.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Candidate, error)
}

// sortCandidates orders by confidence descending; ties break by category
// then sub-category name so repeated runs agree.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		if cs[i].Category != cs[j].Category {
			return cs[i].Category < cs[j].Category
		}
		return cs[i].SubCategory < cs[j].SubCategory
	})
}
