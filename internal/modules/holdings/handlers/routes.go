package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all holdings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/owners/{owner}/holdings", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Put("/{key}", h.HandleUpdate)
		r.Delete("/{key}", h.HandleDelete)
	})
}
