package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticMatchesFirstRule(t *testing.T) {
	s := NewStatic(3,
		Rule{Keyword: "overcharg", Candidates: []Candidate{
			{Category: "Billing", SubCategory: "Overcharge", Confidence: 0.81},
		}},
		Rule{Keyword: "bill", Candidates: []Candidate{
			{Category: "Billing", SubCategory: "DuplicatePayment", Confidence: 0.6},
		}},
	)

	out, err := s.Classify(context.Background(), "My BILL was OVERCHARGED again")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Overcharge", out[0].SubCategory)
	assert.Equal(t, 0.81, out[0].Confidence)
}

func TestStaticSortsAndBoundsCandidates(t *testing.T) {
	s := NewStatic(2, Rule{Keyword: "late", Candidates: []Candidate{
		{Category: "Delivery", SubCategory: "Delayed", Confidence: 0.4},
		{Category: "Billing", SubCategory: "LateFee", Confidence: 0.5},
		{Category: "Service", SubCategory: "Slow", Confidence: 0.3},
	}})

	out, err := s.Classify(context.Background(), "parcel is late")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "LateFee", out[0].SubCategory)
	assert.Equal(t, "Delayed", out[1].SubCategory)
}

func TestStaticFallsBackToLowConfidenceGuess(t *testing.T) {
	s := NewStatic(3)

	out, err := s.Classify(context.Background(), "qwerty asdfgh zxcvbn")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "General", out[0].Category)
	assert.Less(t, out[0].Confidence, 0.55, "unmatched text never auto-accepts")
}

func TestStaticDefaultTableCoversBillingOvercharge(t *testing.T) {
	s := NewStatic(3)

	out, err := s.Classify(context.Background(), "my electricity bill was overcharged")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "Billing", out[0].Category)
	assert.Equal(t, "Overcharge", out[0].SubCategory)
	assert.Equal(t, 0.81, out[0].Confidence)
}
