// Package handlers exposes refresh sessions over HTTP: lifecycle control,
// row snapshots, and live row streams over SSE and websocket.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/modules/livestate"
	"github.com/aristath/watchfolio/internal/modules/rotation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler handles screen session HTTP requests
type Handler struct {
	manager *rotation.Manager
	log     zerolog.Logger
}

// NewHandler creates a new screens handler
func NewHandler(manager *rotation.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log.With().Str("handler", "screens").Logger(),
	}
}

// StartRequest is the body of POST /screens/{screen}/start
type StartRequest struct {
	OwnerID string `json:"owner_id"`
	Symbol  string `json:"symbol,omitempty"`
	Session string `json:"session,omitempty"`
}

// ScreenResponse is the full view of one screen
type ScreenResponse struct {
	Status  rotation.Status   `json:"status"`
	Rows    []domain.LiveRow  `json:"rows"`
	Summary livestate.Summary `json:"summary"`
	Profile *domain.Profile   `json:"profile,omitempty"`
}

// HandleList returns the status of every screen
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.manager.Statuses())
}

// HandleStart (re)starts a screen's refresh session
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	screen := chi.URLParam(r, "screen")
	if _, ok := h.lookup(w, r); !ok {
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.OwnerID == "" {
		h.writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if req.Session == "" {
		req.Session = uuid.NewString()
	}

	target := rotation.Target{OwnerID: req.OwnerID, Symbol: strings.ToUpper(strings.TrimSpace(req.Symbol))}
	sched, err := h.manager.Start(screen, req.Session, target)
	if errors.Is(err, rotation.ErrUnknownScreen) {
		h.writeError(w, http.StatusNotFound, "unknown screen")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("screen", screen).Msg("Failed to start session")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, sched.Status())
}

// HandleStop stops a screen's refresh session
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sched.Stop()
	h.writeJSON(w, http.StatusOK, sched.Status())
}

// HandleGet returns a screen's status, rows, totals and profile
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}

	rows := sched.Store().Snapshot()
	h.writeJSON(w, http.StatusOK, ScreenResponse{
		Status:  sched.Status(),
		Rows:    rows,
		Summary: livestate.Summarize(rows),
		Profile: sched.Profile(),
	})
}

// HandleSummary returns a screen's aggregate totals
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, livestate.Summarize(sched.Store().Snapshot()))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*rotation.Scheduler, bool) {
	sched, ok := h.manager.Lookup(chi.URLParam(r, "screen"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown screen")
		return nil, false
	}
	return sched, true
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
