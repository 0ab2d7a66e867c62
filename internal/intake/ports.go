package intake

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/complaintdesk/intake-engine/internal/classify"
	"github.com/complaintdesk/intake-engine/internal/complaint"
)

// State names the dialogue position of a session.
type State string

const (
	StateAwaitingComplaint    State = "AWAITING_COMPLAINT"
	StateClassifying          State = "CLASSIFYING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateFinalized            State = "FINALIZED"
	StateAbandoned            State = "ABANDONED"
)

// AwaitingField renders the elicitation state for one outstanding field,
// e.g. AWAITING_FIELD[accountNumber].
func AwaitingField(name string) State {
	return State("AWAITING_FIELD[" + name + "]")
}

func (s State) awaitingField() bool {
	return strings.HasPrefix(string(s), "AWAITING_FIELD[")
}

func (s State) terminal() bool {
	return s == StateFinalized || s == StateAbandoned
}

// Draft is the in-progress complaint attached to a session. Unfilled
// fields are absent from Fields, never stored empty.
type Draft struct {
	Narrative     string
	CanonicalText string
	Candidates    []classify.Candidate
	Category      string
	SubCategory   string
	Confidence    float64
	Fields        map[string]string
	Sentiment     string
	Attachment    *complaint.Attachment
	EditHistory   []string
}

// FieldEdit updates one already-collected field during confirmation.
type FieldEdit struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TurnInput is one inbound user turn.
type TurnInput struct {
	SessionID  string
	Text       string
	FieldEdit  *FieldEdit
	Confirm    bool
	Cancel     bool
	Attachment *complaint.Attachment
}

// FieldValue is one collected field in canonical table order.
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DraftSummary is the confirmation view of a draft.
type DraftSummary struct {
	Category    string                `json:"category"`
	SubCategory string                `json:"sub_category"`
	Confidence  float64               `json:"confidence"`
	Fields      []FieldValue          `json:"fields"`
	Narrative   string                `json:"narrative"`
	Sentiment   string                `json:"sentiment,omitempty"`
	Attachment  *complaint.Attachment `json:"attachment,omitempty"`
}

// TurnResponse reports the state produced by a turn and, for non-terminal
// states, the next prompt in the user's language. Trace lists the states
// entered during this turn, in order.
type TurnResponse struct {
	SessionID       string               `json:"session_id"`
	State           State                `json:"state"`
	Prompt          string               `json:"prompt,omitempty"`
	Language        string               `json:"language,omitempty"`
	Candidates      []classify.Candidate `json:"candidates,omitempty"`
	Summary         *DraftSummary        `json:"draft_summary,omitempty"`
	ComplaintNumber string               `json:"complaint_number,omitempty"`
	Trace           []State              `json:"trace,omitempty"`
}

// ErrSessionClosed reports input on a finalized or abandoned session. The
// session itself is left untouched.
var ErrSessionClosed = errors.New("session closed")

// Normalizer moves text between the user's language and the canonical
// working language.
type Normalizer interface {
	Normalize(ctx context.Context, text, prevLang string) (canonical string, lang string, err error)
	Localize(ctx context.Context, text, lang string) (string, error)
	Canonical() string
}

// Finalizer files a completed draft exactly once.
type Finalizer interface {
	Finalize(ctx context.Context, sub complaint.Submission) (*complaint.FinalizedComplaint, error)
}

// Service drives the intake dialogue.
type Service interface {
	PostTurn(ctx context.Context, in TurnInput) (*TurnResponse, error)
	ExpireSession(id string)
	ExpireIdle(maxIdle time.Duration) int
}
