// Package handlers provides HTTP handlers for holdings management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/watchfolio/internal/modules/holdings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles holdings HTTP requests
type Handler struct {
	service *holdings.Service
	log     zerolog.Logger
}

// NewHandler creates a new holdings handler
func NewHandler(service *holdings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "holdings").Logger(),
	}
}

// HandleList returns the owner's holdings in display order
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		h.writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate adds a holding
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in holdings.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), chi.URLParam(r, "owner"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleUpdate replaces a holding's fields
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	var in holdings.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "owner"), key, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// HandleDelete removes a holding
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "owner"), key); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseKey(w http.ResponseWriter, r *http.Request) (int64, bool) {
	key, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil || key <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid holding key")
		return 0, false
	}
	return key, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, holdings.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, holdings.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Holdings request failed")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
