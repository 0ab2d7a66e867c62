package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/complaintdesk/intake-engine/internal/fieldspec"
)

// collisions beyond this indicate a corrupted sequence table
const maxAllocateAttempts = 3

// Finalizer validates a completed draft, allocates a unique complaint
// number and commits the record.
type Finalizer struct {
	store Store
	specs *fieldspec.Table
}

func NewFinalizer(store Store, specs *fieldspec.Table) *Finalizer {
	return &Finalizer{store: store, specs: specs}
}

// Finalize checks every filing precondition, then files the record. The
// first unmet precondition is reported as a *FinalizationError. On a
// number collision the allocation is retried.
func (f *Finalizer) Finalize(ctx context.Context, sub Submission) (*FinalizedComplaint, error) {
	if err := f.check(sub); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(sub.Fields))
	for k, v := range sub.Fields {
		fields[k] = v
	}

	rec := &FinalizedComplaint{
		Category:      sub.Category,
		SubCategory:   sub.SubCategory,
		Fields:        fields,
		Narrative:     sub.Narrative,
		CanonicalText: sub.CanonicalText,
		Language:      sub.Language,
		Sentiment:     sub.Sentiment,
		Attachment:    sub.Attachment,
		FiledAt:       time.Now().UTC(),
	}

	code := f.specs.Code(sub.Category)
	if code == "" {
		code = deriveCode(sub.Category)
	}

	var err error
	for attempt := 1; attempt <= maxAllocateAttempts; attempt++ {
		err = f.store.File(ctx, rec, code)
		if err == nil {
			f.feedback(ctx, sub)
			return rec, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"code": code, "attempt": attempt}).Warn("complaint number collision, retrying")
	}
	return nil, fmt.Errorf("allocate complaint number after %d attempts: %w", maxAllocateAttempts, err)
}

func (f *Finalizer) check(sub Submission) error {
	if strings.TrimSpace(sub.Category) == "" {
		return &FinalizationError{Precondition: "category"}
	}
	if strings.TrimSpace(sub.Narrative) == "" {
		return &FinalizationError{Precondition: "narrative"}
	}
	for _, field := range f.specs.Required(sub.Category, sub.SubCategory) {
		value, ok := sub.Fields[field.Name]
		if !ok || strings.TrimSpace(value) == "" {
			return &FinalizationError{Precondition: "field", Field: field.Name, Reason: "missing"}
		}
		if _, valid, _ := field.Validate(value); !valid {
			return &FinalizationError{Precondition: "field", Field: field.Name, Reason: "invalid"}
		}
	}
	return nil
}

// feedback hands the accepted label to the training pipeline's table.
// Best effort: a failure never undoes a successful filing.
func (f *Finalizer) feedback(ctx context.Context, sub Submission) {
	narrative := sub.CanonicalText
	if narrative == "" {
		narrative = sub.Narrative
	}
	if err := f.store.Feedback(ctx, narrative, sub.Category, sub.SubCategory); err != nil {
		logrus.WithError(err).Warn("classifier feedback append failed")
	}
}

func deriveCode(category string) string {
	var b []rune
	for _, r := range strings.ToUpper(category) {
		if r >= 'A' && r <= 'Z' {
			b = append(b, r)
			if len(b) == 2 {
				break
			}
		}
	}
	for len(b) < 2 {
		b = append(b, 'X')
	}
	return string(b)
}
