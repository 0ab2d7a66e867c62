package classify

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Linear scores text with the artifact's TF-IDF vectorizer and linear
// model, turning per-class scores into a confidence distribution.
type Linear struct {
	art  *Artifact
	topK int
}

// NewLinear wraps a validated artifact. topK bounds the returned list.
func NewLinear(art *Artifact, topK int) *Linear {
	if topK < 1 {
		topK = 3
	}
	return &Linear{art: art, topK: topK}
}

var tokenRe = regexp.MustCompile(`[a-z0-9]{2,}`)

func (l *Linear) Classify(_ context.Context, text string) ([]Candidate, error) {
	idxs, vals := l.vectorize(text)

	scores := make([]float64, len(l.art.Model.Classes))
	for i := range scores {
		s := l.art.Model.Intercepts[i]
		row := l.art.Model.Weights[i]
		for j, idx := range idxs {
			s += row[idx] * vals[j]
		}
		scores[i] = s
	}

	probs := softmax(scores)

	out := make([]Candidate, 0, len(probs))
	for i, c := range l.art.Model.Classes {
		out = append(out, Candidate{
			Category:    c.Category,
			SubCategory: c.SubCategory,
			Confidence:  probs[i],
		})
	}
	sortCandidates(out)
	if len(out) > l.topK {
		out = out[:l.topK]
	}
	return out, nil
}

// vectorize builds the sparse L2-normalized TF-IDF vector for text, using
// word n-grams up to the artifact's ngram_max. The vector comes back as
// parallel index/value slices in ascending index order: every float
// accumulation downstream runs in the same order on every call, so
// identical text yields bit-identical scores.
func (l *Linear) vectorize(text string) ([]int, []float64) {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)

	counts := make(map[int]float64)
	for n := 1; n <= l.art.Vectorizer.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := strings.Join(tokens[i:i+n], " ")
			if idx, ok := l.art.Vectorizer.Vocabulary[term]; ok {
				counts[idx]++
			}
		}
	}

	idxs := make([]int, 0, len(counts))
	for idx := range counts {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	vals := make([]float64, len(idxs))
	var norm float64
	for j, idx := range idxs {
		w := counts[idx] * l.art.Vectorizer.IDF[idx]
		vals[j] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for j := range vals {
			vals[j] /= norm
		}
	}
	return idxs, vals
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	var sum float64
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
