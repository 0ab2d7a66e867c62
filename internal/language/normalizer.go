package language

import (
	"context"
	"fmt"
)

// Normalizer detects the language of user input and moves text to and from
// the canonical working language.
type Normalizer struct {
	translator Translator
	detector   *Detector
	canonical  string
}

func NewNormalizer(tr Translator, canonical string) *Normalizer {
	return &Normalizer{
		translator: tr,
		detector:   NewDetector(canonical),
		canonical:  canonical,
	}
}

// Canonical returns the working language tag.
func (n *Normalizer) Canonical() string { return n.canonical }

// Normalize detects the input language and translates the text into the
// canonical language. Canonical input passes through untouched. On a
// translation failure it returns the raw text, the detected language, and
// an error wrapping ErrUnavailable so callers can degrade.
func (n *Normalizer) Normalize(ctx context.Context, text, prevLang string) (string, string, error) {
	lang := n.detector.Detect(text, prevLang)
	if lang == n.canonical {
		return text, lang, nil
	}

	out, err := n.translator.Translate(ctx, text, lang, n.canonical)
	if err != nil {
		return text, lang, fmt.Errorf("normalize %s text: %w", lang, ErrUnavailable)
	}
	return out, lang, nil
}

// Localize renders canonical text in the target language. Canonical or
// unknown targets pass through. On failure the canonical text is returned
// alongside an error wrapping ErrUnavailable.
func (n *Normalizer) Localize(ctx context.Context, text, lang string) (string, error) {
	if lang == "" || lang == n.canonical {
		return text, nil
	}

	out, err := n.translator.Translate(ctx, text, n.canonical, lang)
	if err != nil {
		return text, fmt.Errorf("localize to %s: %w", lang, ErrUnavailable)
	}
	return out, nil
}
