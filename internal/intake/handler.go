package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/complaintdesk/intake-engine/internal/complaint"
)

type Handler struct {
	svc   Service
	store complaint.Store
}

func NewHandler(svc Service, store complaint.Store) *Handler {
	return &Handler{svc: svc, store: store}
}

// HandleTurn processes one dialogue turn. The session id comes from the
// URL when present, otherwise from the body; a missing id starts a new
// session.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID  string                `json:"session_id"`
		Text       string                `json:"text"`
		FieldEdit  *FieldEdit            `json:"field_edit"`
		Confirm    bool                  `json:"confirm"`
		Cancel     bool                  `json:"cancel"`
		Attachment *complaint.Attachment `json:"attachment"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if id := chi.URLParam(r, "sessionID"); id != "" {
		payload.SessionID = id
	}
	if payload.Text == "" && payload.FieldEdit == nil && !payload.Confirm && !payload.Cancel && payload.Attachment == nil {
		http.Error(w, "empty turn", http.StatusBadRequest)
		return
	}

	resp, err := h.svc.PostTurn(r.Context(), TurnInput{
		SessionID:  payload.SessionID,
		Text:       payload.Text,
		FieldEdit:  payload.FieldEdit,
		Confirm:    payload.Confirm,
		Cancel:     payload.Cancel,
		Attachment: payload.Attachment,
	})
	if errors.Is(err, ErrSessionClosed) {
		http.Error(w, "session closed", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleExpire serves explicit session expiry for the transport's timeout
// collaborator. Idempotent, always 204.
func (h *Handler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	h.svc.ExpireSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetComplaint looks up a filed complaint by its number.
func (h *Handler) HandleGetComplaint(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	rec, err := h.store.Get(r.Context(), number)
	if errors.Is(err, complaint.ErrNotFound) {
		http.Error(w, "complaint not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}
