package complaint

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complaintdesk/intake-engine/internal/fieldspec"
)

const finalizerTable = `
specs:
  - category: Billing
    code: BL
    sub_category: Overcharge
    fields:
      - name: accountNumber
        prompt: Account number?
        validate: {kind: numeric}
      - name: billMonth
        prompt: Billing month?
        validate: {kind: date}
`

func testSpecs(t *testing.T) *fieldspec.Table {
	t.Helper()
	table, err := fieldspec.Parse([]byte(finalizerTable))
	require.NoError(t, err)
	return table
}

func completeSubmission() Submission {
	return Submission{
		Category:      "Billing",
		SubCategory:   "Overcharge",
		Fields:        map[string]string{"accountNumber": "4201175", "billMonth": "2026-07-01"},
		Narrative:     "my electricity bill was overcharged",
		CanonicalText: "my electricity bill was overcharged",
		Language:      "en",
		Sentiment:     "neg",
	}
}

var numberRe = regexp.MustCompile(`^BL-\d{8}$`)

func TestFinalizeFilesCompleteDraft(t *testing.T) {
	store := NewMemory()
	f := NewFinalizer(store, testSpecs(t))

	rec, err := f.Finalize(context.Background(), completeSubmission())
	require.NoError(t, err)

	assert.Regexp(t, numberRe, rec.Number)
	assert.Equal(t, "BL-00000001", rec.Number)
	assert.False(t, rec.FiledAt.IsZero())
	assert.Equal(t, 1, store.Len())

	// accepted label lands in the training feedback table
	fb := store.Feedbacks()
	require.Len(t, fb, 1)
	assert.Equal(t, "my electricity bill was overcharged", fb[0].Narrative)
	assert.Equal(t, "Billing", fb[0].Category)

	second, err := f.Finalize(context.Background(), completeSubmission())
	require.NoError(t, err)
	assert.Equal(t, "BL-00000002", second.Number)
}

func TestFinalizeNamesFirstUnmetPrecondition(t *testing.T) {
	f := NewFinalizer(NewMemory(), testSpecs(t))

	cases := []struct {
		name   string
		mutate func(*Submission)
		want   FinalizationError
	}{
		{
			"category missing",
			func(s *Submission) { s.Category = "" },
			FinalizationError{Precondition: "category"},
		},
		{
			"narrative empty",
			func(s *Submission) { s.Narrative = "   " },
			FinalizationError{Precondition: "narrative"},
		},
		{
			"first field missing",
			func(s *Submission) { delete(s.Fields, "accountNumber") },
			FinalizationError{Precondition: "field", Field: "accountNumber", Reason: "missing"},
		},
		{
			"later field missing",
			func(s *Submission) { delete(s.Fields, "billMonth") },
			FinalizationError{Precondition: "field", Field: "billMonth", Reason: "missing"},
		},
		{
			"field invalid",
			func(s *Submission) { s.Fields["accountNumber"] = "abc" },
			FinalizationError{Precondition: "field", Field: "accountNumber", Reason: "invalid"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := completeSubmission()
			tc.mutate(&sub)

			_, err := f.Finalize(context.Background(), sub)
			require.Error(t, err)

			var fe *FinalizationError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.want.Precondition, fe.Precondition)
			assert.Equal(t, tc.want.Field, fe.Field)
			if tc.want.Reason != "" {
				assert.Equal(t, tc.want.Reason, fe.Reason)
			}
		})
	}
}

func TestFinalizeSucceedsIffNothingMissing(t *testing.T) {
	f := NewFinalizer(NewMemory(), testSpecs(t))

	fieldSets := []map[string]string{
		nil,
		{"accountNumber": "42"},
		{"billMonth": "2026-07-01"},
		{"accountNumber": "42", "billMonth": "2026-07-01"},
	}

	for _, fields := range fieldSets {
		sub := completeSubmission()
		sub.Fields = fields

		complete := len(fields) == 2
		_, err := f.Finalize(context.Background(), sub)
		if complete {
			assert.NoError(t, err)
		} else {
			var fe *FinalizationError
			assert.ErrorAs(t, err, &fe)
		}
	}
}

// collideStore forces the first n filings to collide.
type collideStore struct {
	*Memory
	failures int
}

func (c *collideStore) File(ctx context.Context, rec *FinalizedComplaint, code string) error {
	if c.failures > 0 {
		c.failures--
		return ErrDuplicateNumber
	}
	return c.Memory.File(ctx, rec, code)
}

func TestFinalizeRetriesCollisions(t *testing.T) {
	t.Run("recovers after transient collisions", func(t *testing.T) {
		store := &collideStore{Memory: NewMemory(), failures: 2}
		f := NewFinalizer(store, testSpecs(t))

		rec, err := f.Finalize(context.Background(), completeSubmission())
		require.NoError(t, err)
		assert.Regexp(t, numberRe, rec.Number)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		store := &collideStore{Memory: NewMemory(), failures: 10}
		f := NewFinalizer(store, testSpecs(t))

		_, err := f.Finalize(context.Background(), completeSubmission())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateNumber)
		assert.Equal(t, 0, store.Len(), "no duplicate ever surfaces")
	})
}

func TestFinalizeUnmappedCategoryDerivesCode(t *testing.T) {
	f := NewFinalizer(NewMemory(), testSpecs(t))

	sub := completeSubmission()
	sub.Category = "General"
	sub.SubCategory = "Other"
	sub.Fields = nil // unmapped pair requires nothing

	rec, err := f.Finalize(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "GE-00000001", rec.Number)
}

// feedbackFailStore accepts filings but loses feedback.
type feedbackFailStore struct {
	*Memory
}

func (s *feedbackFailStore) Feedback(context.Context, string, string, string) error {
	return errors.New("feedback table unavailable")
}

func TestFeedbackFailureDoesNotFailFiling(t *testing.T) {
	f := NewFinalizer(&feedbackFailStore{Memory: NewMemory()}, testSpecs(t))

	rec, err := f.Finalize(context.Background(), completeSubmission())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Number)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "BL-00000007", FormatNumber("BL", 7))
	assert.Equal(t, "TR-12345678", FormatNumber("TR", 12345678))
}
