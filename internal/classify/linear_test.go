package classify

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearFrom(t *testing.T, doc string, topK int) *Linear {
	t.Helper()
	art, err := ParseArtifact([]byte(doc))
	require.NoError(t, err)
	return NewLinear(art, topK)
}

func TestLinearRanksMatchingClassFirst(t *testing.T) {
	l := linearFrom(t, validArtifact, 3)

	out, err := l.Classify(context.Background(), "my electricity bill was overcharged")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Billing", out[0].Category)
	assert.Equal(t, "Overcharge", out[0].SubCategory)
	assert.Greater(t, out[0].Confidence, 0.9)
	assert.Greater(t, out[0].Confidence, out[1].Confidence)

	var sum float64
	for _, c := range out {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		sum += c.Confidence
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "confidences over all classes form a distribution")
}

func TestLinearIsDeterministic(t *testing.T) {
	l := linearFrom(t, validArtifact, 3)

	first, err := l.Classify(context.Background(), "no power since yesterday, total outage")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := l.Classify(context.Background(), "no power since yesterday, total outage")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLinearIsBitwiseDeterministicOnWideVocabulary(t *testing.T) {
	// enough active terms that any variation in float summation order
	// would surface as bitwise-different confidences
	const terms = 60
	vocab := make(map[string]int, terms)
	idf := make([]float64, terms)
	words := make([]string, terms)
	for i := 0; i < terms; i++ {
		w := fmt.Sprintf("term%02d", i)
		words[i] = w
		vocab[w] = i
		idf[i] = 1.0 + float64(i)*0.013
	}

	classes := []Class{
		{Category: "Billing", SubCategory: "Overcharge"},
		{Category: "Service", SubCategory: "Outage"},
		{Category: "Trading", SubCategory: "UnauthorizedTrade"},
	}
	weights := make([][]float64, len(classes))
	for c := range weights {
		weights[c] = make([]float64, terms)
		for i := range weights[c] {
			weights[c][i] = math.Sin(float64(c*terms + i))
		}
	}

	l := NewLinear(&Artifact{
		SchemaVersion: SchemaVersion,
		Vectorizer:    Vectorizer{Vocabulary: vocab, IDF: idf, NgramMax: 1},
		Model:         Model{Classes: classes, Weights: weights, Intercepts: []float64{0.05, -0.02, 0.01}},
	}, 3)

	text := strings.Join(words, " ")
	first, err := l.Classify(context.Background(), text)
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		again, err := l.Classify(context.Background(), text)
		require.NoError(t, err)
		require.Equal(t, first, again, "call %d diverged", i)
	}
}

func TestLinearBreaksTiesLexically(t *testing.T) {
	// identical weight rows produce identical scores for both classes
	doc := `{"schema_version": 1,
		"vectorizer": {"vocabulary": {"refund": 0}, "idf": [1.0]},
		"model": {"classes": [
			{"category": "Zeta", "sub_category": "Refund"},
			{"category": "Alpha", "sub_category": "Refund"}
		], "weights": [[1.5], [1.5]], "intercepts": [0.2, 0.2]}}`

	l := linearFrom(t, doc, 3)
	out, err := l.Classify(context.Background(), "refund please")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, out[0].Confidence, out[1].Confidence)
	assert.Equal(t, "Alpha", out[0].Category)
	assert.Equal(t, "Zeta", out[1].Category)
}

func TestLinearBoundsTopK(t *testing.T) {
	doc := `{"schema_version": 1,
		"vectorizer": {"vocabulary": {"slow": 0}, "idf": [1.0]},
		"model": {"classes": [
			{"category": "A", "sub_category": "S"},
			{"category": "B", "sub_category": "S"},
			{"category": "C", "sub_category": "S"},
			{"category": "D", "sub_category": "S"}
		], "weights": [[4], [3], [2], [1]], "intercepts": [0, 0, 0, 0]}}`

	l := linearFrom(t, doc, 2)
	out, err := l.Classify(context.Background(), "the service is painfully slow")
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Category)
	assert.Equal(t, "B", out[1].Category)
}

func TestLinearUsesBigrams(t *testing.T) {
	doc := `{"schema_version": 1,
		"vectorizer": {"vocabulary": {"meter reading": 0}, "idf": [1.0], "ngram_max": 2},
		"model": {"classes": [
			{"category": "Metering", "sub_category": "WrongReading"},
			{"category": "General", "sub_category": "Other"}
		], "weights": [[3.0], [-3.0]], "intercepts": [0, 0]}}`

	l := linearFrom(t, doc, 3)
	out, err := l.Classify(context.Background(), "the meter reading is wrong")
	require.NoError(t, err)

	assert.Equal(t, "Metering", out[0].Category)
	assert.Greater(t, out[0].Confidence, 0.9)
}

func TestLinearHandlesUnknownText(t *testing.T) {
	l := linearFrom(t, validArtifact, 3)

	out, err := l.Classify(context.Background(), "zzz qqq completely unseen words")
	require.NoError(t, err)
	require.Len(t, out, 2, "scores fall back to intercepts, every class still ranked")
}
