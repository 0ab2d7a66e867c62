package intake

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/turns", h.HandleTurn)
	r.Post("/sessions/{sessionID}/turns", h.HandleTurn)
	r.Delete("/sessions/{sessionID}", h.HandleExpire)
	r.Get("/complaints/{number}", h.HandleGetComplaint)
}
