package language

import (
	"context"
	"errors"
)

// ErrUnavailable marks a translation failure. Callers degrade to the raw
// untranslated text instead of aborting the conversation.
var ErrUnavailable = errors.New("translation unavailable")

// Translator converts text between two languages, identified by ISO 639-1
// tags. It knows nothing about sessions or complaints.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}
