package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all screen routes. restMiddleware wraps only the
// request/response routes; the SSE and websocket streams stay open
// indefinitely and must not run under a request timeout.
func (h *Handler) RegisterRoutes(r chi.Router, restMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/screens", func(r chi.Router) {
		r.With(restMiddleware...).Get("/", h.HandleList)

		r.Route("/{screen}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(restMiddleware...)
				r.Get("/", h.HandleGet)
				r.Post("/start", h.HandleStart)
				r.Post("/stop", h.HandleStop)
				r.Get("/summary", h.HandleSummary)
			})

			r.Get("/stream", h.HandleStream) // SSE
			r.Get("/ws", h.HandleWebSocket)
		})
	})
}
