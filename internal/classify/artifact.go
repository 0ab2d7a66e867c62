package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// SchemaVersion is the artifact layout this build understands. A bundle
// with any other version is rejected at load time.
const SchemaVersion = 1

// Artifact is the trained vectorizer+model pair, exported by the training
// pipeline as a single JSON bundle.
type Artifact struct {
	SchemaVersion int        `json:"schema_version"`
	Vectorizer    Vectorizer `json:"vectorizer"`
	Model         Model      `json:"model"`
}

// Vectorizer holds the TF-IDF vocabulary and per-term IDF weights.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	NgramMax   int            `json:"ngram_max"`
}

// Model is a linear classifier over (category, sub-category) classes.
type Model struct {
	Classes    []Class     `json:"classes"`
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

// Class labels one output of the model.
type Class struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
}

// LoadArtifact reads and validates a model bundle from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes a model bundle and checks its shape, so a broken
// or mismatched artifact fails startup instead of a live conversation.
func ParseArtifact(data []byte) (*Artifact, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}

	if art.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("model artifact schema version %d is not supported (want %d)", art.SchemaVersion, SchemaVersion)
	}
	if art.Vectorizer.NgramMax == 0 {
		art.Vectorizer.NgramMax = 1
	}
	if art.Vectorizer.NgramMax < 1 || art.Vectorizer.NgramMax > 3 {
		return nil, fmt.Errorf("model artifact ngram_max %d out of range", art.Vectorizer.NgramMax)
	}

	terms := len(art.Vectorizer.Vocabulary)
	if terms == 0 {
		return nil, fmt.Errorf("model artifact has an empty vocabulary")
	}
	if len(art.Vectorizer.IDF) != terms {
		return nil, fmt.Errorf("model artifact idf length %d does not match vocabulary size %d", len(art.Vectorizer.IDF), terms)
	}
	seen := make([]bool, terms)
	for term, idx := range art.Vectorizer.Vocabulary {
		if idx < 0 || idx >= terms {
			return nil, fmt.Errorf("model artifact term %q has index %d out of range", term, idx)
		}
		if seen[idx] {
			return nil, fmt.Errorf("model artifact vocabulary index %d used twice", idx)
		}
		seen[idx] = true
	}

	classes := len(art.Model.Classes)
	if classes == 0 {
		return nil, fmt.Errorf("model artifact has no classes")
	}
	if len(art.Model.Weights) != classes {
		return nil, fmt.Errorf("model artifact has %d weight rows for %d classes", len(art.Model.Weights), classes)
	}
	if len(art.Model.Intercepts) != classes {
		return nil, fmt.Errorf("model artifact has %d intercepts for %d classes", len(art.Model.Intercepts), classes)
	}
	for i, row := range art.Model.Weights {
		if len(row) != terms {
			return nil, fmt.Errorf("model artifact weight row %d has %d terms, vocabulary has %d", i, len(row), terms)
		}
	}
	for i, c := range art.Model.Classes {
		if c.Category == "" {
			return nil, fmt.Errorf("model artifact class %d has an empty category", i)
		}
	}

	return &art, nil
}
