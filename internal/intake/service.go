package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/complaintdesk/intake-engine/internal/classify"
	"github.com/complaintdesk/intake-engine/internal/complaint"
	"github.com/complaintdesk/intake-engine/internal/fieldspec"
)

type service struct {
	specs      *fieldspec.Table
	classifier classify.Classifier
	normalizer Normalizer
	finalizer  Finalizer
	threshold  float64
	sessions   *registry
}

func NewService(specs *fieldspec.Table, cls classify.Classifier, norm Normalizer, fin Finalizer, threshold float64) Service {
	return &service{
		specs:      specs,
		classifier: cls,
		normalizer: norm,
		finalizer:  fin,
		threshold:  threshold,
		sessions:   newRegistry(),
	}
}

// PostTurn processes one user turn. Turns for the same session are
// serialized by the session gate; sessions never share mutable state, so
// unrelated sessions proceed in parallel. Localizing the outbound prompt
// touches no session state, so it runs after the gate is released.
func (s *service) PostTurn(ctx context.Context, in TurnInput) (*TurnResponse, error) {
	resp, err := s.turn(ctx, s.sessions.obtain(in.SessionID), in)
	if err != nil {
		return nil, err
	}
	s.localizePrompt(ctx, resp)
	return resp, nil
}

func (s *service) turn(ctx context.Context, sess *session, in TurnInput) (*TurnResponse, error) {
	sess.gate.Lock()
	defer sess.gate.Unlock()

	if sess.state.terminal() {
		return nil, fmt.Errorf("session %s in state %s: %w", sess.id, sess.state, ErrSessionClosed)
	}

	sess.touch()
	sess.turns++
	mark := len(sess.trace)

	logrus.WithFields(logrus.Fields{
		"session": sess.id,
		"state":   sess.state,
		"turn":    sess.turns,
	}).Debug("turn received")

	if in.Attachment != nil {
		sess.draft.Attachment = in.Attachment
	}

	if in.Cancel || isCancel(in.Text) {
		sess.setState(StateAbandoned)
		logrus.WithField("session", sess.id).Info("session cancelled")
		return s.finishTurn(sess, mark, &TurnResponse{Prompt: promptCancelled}), nil
	}

	var resp *TurnResponse
	var err error
	switch {
	case sess.state == StateAwaitingComplaint:
		resp, err = s.narrativeTurn(ctx, sess, in)
	case sess.state == StateClassifying:
		resp, err = s.choiceTurn(sess, in.Text)
	case sess.state.awaitingField():
		resp, err = s.fieldTurn(ctx, sess, in)
	case sess.state == StateAwaitingConfirmation:
		resp, err = s.confirmTurn(ctx, sess, in)
	default:
		err = fmt.Errorf("session %s in unhandled state %s", sess.id, sess.state)
	}
	if err != nil {
		return nil, err
	}
	return s.finishTurn(sess, mark, resp), nil
}

// narrativeTurn handles AWAITING_COMPLAINT: deflect small talk, otherwise
// take the text as the complaint narrative and classify it.
func (s *service) narrativeTurn(ctx context.Context, sess *session, in TurnInput) (*TurnResponse, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return &TurnResponse{Prompt: promptDescribe}, nil
	}
	if reply, ok := smalltalkReply(text); ok {
		return &TurnResponse{Prompt: reply}, nil
	}

	canonical := s.normalize(ctx, sess, text)
	return s.classify(ctx, sess, text, canonical)
}

// classify replaces the draft narrative and runs the classifier. Above
// the confidence threshold the top candidate is accepted outright; below
// it, or when the model is unavailable, the user picks a category and the
// session stays in CLASSIFYING.
func (s *service) classify(ctx context.Context, sess *session, raw, canonical string) (*TurnResponse, error) {
	sess.draft.Narrative = raw
	sess.draft.CanonicalText = canonical
	sess.draft.Sentiment = sentiment(canonical)
	sess.setState(StateClassifying)

	cands, err := s.classifier.Classify(ctx, canonical)
	if err != nil || len(cands) == 0 {
		if err != nil {
			logrus.WithError(err).WithField("session", sess.id).Warn("classifier unavailable, falling back to manual category choice")
		}
		sess.draft.Candidates = s.manualCandidates()
		return &TurnResponse{
			Prompt:     promptManualChoice + "\n" + renderChoices(sess.draft.Candidates),
			Candidates: sess.draft.Candidates,
		}, nil
	}
	sess.draft.Candidates = cands

	top := cands[0]
	if top.Confidence < s.threshold {
		logrus.WithFields(logrus.Fields{
			"session":    sess.id,
			"top":        top.Category + "/" + top.SubCategory,
			"confidence": top.Confidence,
		}).Info("low confidence, asking for explicit choice")
		return &TurnResponse{
			Prompt:     promptLowConfidence + "\n" + renderChoices(cands),
			Candidates: cands,
		}, nil
	}

	s.acceptCategory(sess, top)
	resp := s.advance(sess)
	if sess.draft.Sentiment == "neg" {
		resp.Prompt = empathyPrefix + resp.Prompt
	}
	return resp, nil
}

// choiceTurn handles CLASSIFYING: the user picks one of the presented
// candidates by number or by name. Anything else re-prompts.
func (s *service) choiceTurn(sess *session, text string) (*TurnResponse, error) {
	chosen, ok := parseChoice(text, sess.draft.Candidates)
	if !ok {
		return &TurnResponse{
			Prompt:     promptChoiceRetry + "\n" + renderChoices(sess.draft.Candidates),
			Candidates: sess.draft.Candidates,
		}, nil
	}
	s.acceptCategory(sess, chosen)
	return s.advance(sess), nil
}

// fieldTurn handles AWAITING_FIELD: validate the answer for the first
// missing field. A rejected value re-prompts with the corrective hint and
// does not advance.
func (s *service) fieldTurn(ctx context.Context, sess *session, in TurnInput) (*TurnResponse, error) {
	missing := s.specs.Missing(sess.draft.Category, sess.draft.SubCategory, sess.draft.Fields)
	if len(missing) == 0 {
		return s.advance(sess), nil
	}
	field := missing[0]

	text := in.Text
	if in.FieldEdit != nil {
		if !strings.EqualFold(in.FieldEdit.Name, field.Name) {
			return &TurnResponse{Prompt: fmt.Sprintf(promptCurrentFirst, field.Prompt)}, nil
		}
		text = in.FieldEdit.Value
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &TurnResponse{Prompt: field.Prompt}, nil
	}

	value := s.normalize(ctx, sess, text)
	normalized, ok, hint := field.Validate(value)
	if !ok {
		return &TurnResponse{Prompt: hint}, nil
	}
	sess.draft.Fields[field.Name] = normalized
	return s.advance(sess), nil
}

// confirmTurn handles AWAITING_CONFIRMATION: confirm files the draft, a
// field edit revalidates in place, free text replaces the narrative and
// re-classifies.
func (s *service) confirmTurn(ctx context.Context, sess *session, in TurnInput) (*TurnResponse, error) {
	if in.FieldEdit != nil {
		return s.editFieldTurn(sess, *in.FieldEdit), nil
	}

	text := strings.TrimSpace(in.Text)
	verdict := text
	if text != "" && !in.Confirm {
		verdict = s.normalize(ctx, sess, text)
	}

	switch {
	case in.Confirm || isYes(verdict):
		return s.finalizeTurn(ctx, sess)
	case isNo(verdict):
		return &TurnResponse{Prompt: promptChangeWhat, Summary: buildSummary(s.specs, &sess.draft)}, nil
	case text == "":
		sum := buildSummary(s.specs, &sess.draft)
		return &TurnResponse{Prompt: renderSummary(sum), Summary: sum}, nil
	default:
		return s.classify(ctx, sess, text, verdict)
	}
}

// editFieldTurn updates one collected field without leaving confirmation.
func (s *service) editFieldTurn(sess *session, edit FieldEdit) *TurnResponse {
	required := s.specs.Required(sess.draft.Category, sess.draft.SubCategory)

	var field *fieldspec.Field
	for i := range required {
		if strings.EqualFold(required[i].Name, edit.Name) {
			field = &required[i]
			break
		}
	}
	if field == nil {
		names := make([]string, 0, len(required))
		for _, f := range required {
			names = append(names, f.Name)
		}
		return &TurnResponse{Prompt: fmt.Sprintf(promptUnknownField, edit.Name, strings.Join(names, ", "))}
	}

	normalized, ok, hint := field.Validate(edit.Value)
	if !ok {
		return &TurnResponse{Prompt: hint, Summary: buildSummary(s.specs, &sess.draft)}
	}
	sess.draft.Fields[field.Name] = normalized

	sum := buildSummary(s.specs, &sess.draft)
	return &TurnResponse{
		Prompt:  "Updated " + field.Name + ".\n" + renderSummary(sum),
		Summary: sum,
	}
}

// finalizeTurn hands the draft to the finalizer. An unmet precondition
// routes the session back to the right state instead of abandoning it.
func (s *service) finalizeTurn(ctx context.Context, sess *session) (*TurnResponse, error) {
	rec, err := s.finalizer.Finalize(ctx, complaint.Submission{
		Category:      sess.draft.Category,
		SubCategory:   sess.draft.SubCategory,
		Fields:        sess.draft.Fields,
		Narrative:     sess.draft.Narrative,
		CanonicalText: sess.draft.CanonicalText,
		Language:      sess.lang,
		Sentiment:     sess.draft.Sentiment,
		Attachment:    sess.draft.Attachment,
	})
	if err != nil {
		var fe *complaint.FinalizationError
		if errors.As(err, &fe) {
			logrus.WithError(fe).WithField("session", sess.id).Warn("finalization precondition unmet, recovering")
			return s.recoverFinalization(sess, fe), nil
		}
		return nil, fmt.Errorf("finalize session %s: %w", sess.id, err)
	}

	sess.setState(StateFinalized)
	logrus.WithFields(logrus.Fields{
		"session":  sess.id,
		"number":   rec.Number,
		"category": rec.Category,
	}).Info("complaint filed")
	return &TurnResponse{
		Prompt:          fmt.Sprintf(promptFiled, rec.Number),
		ComplaintNumber: rec.Number,
	}, nil
}

func (s *service) recoverFinalization(sess *session, fe *complaint.FinalizationError) *TurnResponse {
	switch fe.Precondition {
	case "narrative":
		sess.setState(StateAwaitingComplaint)
		return &TurnResponse{Prompt: promptDescribe}
	case "field":
		if fe.Reason == "invalid" {
			delete(sess.draft.Fields, fe.Field)
		}
		return s.advance(sess)
	default:
		sess.draft.Candidates = s.manualCandidates()
		sess.setState(StateClassifying)
		return &TurnResponse{
			Prompt:     promptManualChoice + "\n" + renderChoices(sess.draft.Candidates),
			Candidates: sess.draft.Candidates,
		}
	}
}

// acceptCategory fixes the draft's category and keeps only the collected
// fields the new category still requires. A previously accepted category
// is pushed onto the edit history.
func (s *service) acceptCategory(sess *session, c classify.Candidate) {
	prev := sess.draft.Category
	prevSub := sess.draft.SubCategory
	if prev != "" && (prev != c.Category || prevSub != c.SubCategory) {
		sess.draft.EditHistory = append(sess.draft.EditHistory, prev+"/"+prevSub)
	}

	kept := make(map[string]string)
	for _, f := range s.specs.Required(c.Category, c.SubCategory) {
		if v, ok := sess.draft.Fields[f.Name]; ok {
			kept[f.Name] = v
		}
	}
	sess.draft.Fields = kept
	sess.draft.Category = c.Category
	sess.draft.SubCategory = c.SubCategory
	sess.draft.Confidence = c.Confidence

	logrus.WithFields(logrus.Fields{
		"session":    sess.id,
		"category":   c.Category,
		"sub":        c.SubCategory,
		"confidence": c.Confidence,
	}).Info("category accepted")
}

// advance moves to the first missing field, or to confirmation when the
// draft is complete.
func (s *service) advance(sess *session) *TurnResponse {
	missing := s.specs.Missing(sess.draft.Category, sess.draft.SubCategory, sess.draft.Fields)
	if len(missing) == 0 {
		sess.setState(StateAwaitingConfirmation)
		sum := buildSummary(s.specs, &sess.draft)
		return &TurnResponse{Prompt: renderSummary(sum), Summary: sum}
	}
	next := missing[0]
	sess.setState(AwaitingField(next.Name))
	return &TurnResponse{Prompt: next.Prompt}
}

// normalize moves one inbound text to the canonical language, updating
// the session's detected language. On translator failure the raw text is
// used and the turn continues degraded.
func (s *service) normalize(ctx context.Context, sess *session, text string) string {
	canonical, lang, err := s.normalizer.Normalize(ctx, text, sess.lang)
	if err != nil {
		logrus.WithError(err).WithField("session", sess.id).Warn("continuing with untranslated text")
	}
	sess.lang = lang
	return canonical
}

// finishTurn stamps the response with the session outcome. Called with
// the gate held; everything the response needs is copied out so the
// caller never touches the session again.
func (s *service) finishTurn(sess *session, mark int, resp *TurnResponse) *TurnResponse {
	resp.SessionID = sess.id
	resp.State = sess.state
	resp.Language = sess.lang
	resp.Trace = append([]State(nil), sess.trace[mark:]...)
	return resp
}

// localizePrompt renders the outbound prompt in the user's language. It
// may block on the translator, so it runs outside the session gate and
// reads only the response.
func (s *service) localizePrompt(ctx context.Context, resp *TurnResponse) {
	if resp.Prompt == "" {
		return
	}
	localized, err := s.normalizer.Localize(ctx, resp.Prompt, resp.Language)
	if err != nil {
		logrus.WithError(err).WithField("session", resp.SessionID).Warn("prompt localization degraded")
	}
	resp.Prompt = localized
}

func (s *service) manualCandidates() []classify.Candidate {
	pairs := s.specs.Pairs()
	out := make([]classify.Candidate, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, classify.Candidate{Category: p.Category, SubCategory: p.SubCategory})
	}
	return out
}

// parseChoice reads a category selection: a 1-based index into the
// presented candidates, or a candidate's category or sub-category name.
func parseChoice(text string, cands []classify.Candidate) (classify.Candidate, bool) {
	t := word(text)
	if t == "" || len(cands) == 0 {
		return classify.Candidate{}, false
	}
	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= len(cands) {
			return cands[n-1], true
		}
		return classify.Candidate{}, false
	}
	for _, c := range cands {
		switch t {
		case strings.ToLower(c.Category),
			strings.ToLower(c.SubCategory),
			strings.ToLower(c.Category + " " + c.SubCategory),
			strings.ToLower(c.Category + " / " + c.SubCategory):
			return c, true
		}
	}
	return classify.Candidate{}, false
}

// ExpireSession abandons and drops one session. Expiring a terminal or
// unknown session is a no-op.
func (s *service) ExpireSession(id string) {
	sess, ok := s.sessions.get(id)
	if !ok {
		return
	}
	sess.gate.Lock()
	if !sess.state.terminal() {
		sess.setState(StateAbandoned)
		logrus.WithField("session", sess.id).Info("session expired")
	}
	sess.gate.Unlock()
	s.sessions.remove(id)
}

// ExpireIdle abandons every session idle for longer than maxIdle and
// reports how many were live. Terminal sessions are swept without being
// counted.
func (s *service) ExpireIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).UnixNano()

	var expired int
	for _, sess := range s.sessions.snapshot() {
		if sess.lastSeen.Load() > cutoff {
			continue
		}
		sess.gate.Lock()
		stale := sess.lastSeen.Load() <= cutoff
		if stale && !sess.state.terminal() {
			sess.setState(StateAbandoned)
			expired++
		}
		sess.gate.Unlock()

		if stale {
			s.sessions.remove(sess.id)
		}
	}
	if expired > 0 {
		logrus.WithField("count", expired).Info("idle sessions expired")
	}
	return expired
}
