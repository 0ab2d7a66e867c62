package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// inputs shorter than this are too ambiguous for trigram detection
const minDetectTokens = 3

// Detector identifies the dominant language of user input. Code-mixed text
// resolves to whichever script/vocabulary dominates.
type Detector struct {
	canonical string
}

func NewDetector(canonical string) *Detector {
	return &Detector{canonical: canonical}
}

// Detect returns the ISO 639-1 tag for text. Short or unreliable input
// falls back to prev (the session's earlier detection), then to the
// canonical language.
func (d *Detector) Detect(text, prev string) string {
	fallback := prev
	if fallback == "" {
		fallback = d.canonical
	}

	if len(strings.Fields(text)) < minDetectTokens {
		return fallback
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return fallback
	}
	iso := info.Lang.Iso6391()
	if iso == "" {
		return fallback
	}
	return iso
}
