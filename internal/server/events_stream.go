package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/watchfolio/internal/events"
	"github.com/rs/zerolog"
)

const (
	eventBufferSize        = 100
	eventHeartbeatInterval = 30 * time.Second
)

// EventsStreamHandler streams bus events to clients as Server-Sent Events
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream. ?types=A,B narrows the stream.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var types []events.EventType
	if filter := r.URL.Query().Get("types"); filter != "" {
		for _, t := range strings.Split(filter, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, events.EventType(t))
			}
		}
	}

	// Publish is synchronous; never block the publisher on a slow client
	eventChan := make(chan *events.Event, eventBufferSize)
	unsubscribe := h.eventBus.SubscribeAll(func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}, types...)
	defer unsubscribe()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	h.send(w, flusher, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	})

	heartbeat := time.NewTicker(eventHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			h.send(w, flusher, map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			})

		case <-heartbeat.C:
			h.send(w, flusher, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			})
		}
	}
}

func (h *EventsStreamHandler) send(w http.ResponseWriter, flusher http.Flusher, event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
