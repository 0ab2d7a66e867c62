package complaint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Attachment is an opaque handle to externally stored complaint evidence.
// The engine never inspects the contents.
type Attachment struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Submission is a completed draft handed over for filing.
type Submission struct {
	Category      string
	SubCategory   string
	Fields        map[string]string
	Narrative     string
	CanonicalText string
	Language      string
	Sentiment     string
	Attachment    *Attachment
}

// FinalizedComplaint is the filed record. It is created exactly once per
// session and never mutated afterwards.
type FinalizedComplaint struct {
	Number        string            `json:"number"`
	Category      string            `json:"category"`
	SubCategory   string            `json:"sub_category"`
	Fields        map[string]string `json:"fields"`
	Narrative     string            `json:"narrative"`
	CanonicalText string            `json:"canonical_text"`
	Language      string            `json:"language"`
	Sentiment     string            `json:"sentiment,omitempty"`
	Attachment    *Attachment       `json:"attachment,omitempty"`
	FiledAt       time.Time         `json:"filed_at"`
}

var (
	// ErrDuplicateNumber reports that an allocated complaint number already
	// exists in the store. The finalizer retries allocation; a duplicate is
	// never surfaced to the user.
	ErrDuplicateNumber = errors.New("complaint number already taken")

	// ErrNotFound reports a lookup for a number that was never issued.
	ErrNotFound = errors.New("complaint not found")
)

// FinalizationError names the first unmet filing precondition.
type FinalizationError struct {
	Precondition string // "category", "narrative" or "field"
	Field        string // set when Precondition is "field"
	Reason       string // "missing" or "invalid"
}

func (e *FinalizationError) Error() string {
	if e.Precondition == "field" {
		return fmt.Sprintf("finalize: field %s is %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("finalize: %s is missing", e.Precondition)
}

// Store persists finalized complaints. File allocates the next number for
// the given category code and commits the record in one atomic step,
// returning ErrDuplicateNumber if the number is already taken.
type Store interface {
	File(ctx context.Context, rec *FinalizedComplaint, code string) error
	Get(ctx context.Context, number string) (*FinalizedComplaint, error)
	Feedback(ctx context.Context, narrative, category, subCategory string) error
	Close() error
}

// FormatNumber renders a complaint number: two-letter category code plus
// an eight-digit sequence.
func FormatNumber(code string, seq int64) string {
	return fmt.Sprintf("%s-%08d", code, seq)
}
