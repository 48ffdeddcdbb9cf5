package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/modules/livestate"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

// RowsMessage is one pushed snapshot of a screen
type RowsMessage struct {
	Type      string            `json:"type" msgpack:"type"`
	Screen    string            `json:"screen" msgpack:"screen"`
	Timestamp time.Time         `json:"timestamp" msgpack:"timestamp"`
	Rows      []domain.LiveRow  `json:"rows" msgpack:"rows"`
	Summary   livestate.Summary `json:"summary" msgpack:"summary"`
}

func rowsMessage(screen string, rows []domain.LiveRow) RowsMessage {
	return RowsMessage{
		Type:      "rows",
		Screen:    screen,
		Timestamp: time.Now(),
		Rows:      rows,
		Summary:   livestate.Summarize(rows),
	}
}

// HandleStream pushes the screen's rows as Server-Sent Events: the current
// rows on connect, then every change.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	updates := sched.Store().Observe(ctx)

	h.log.Debug().Str("screen", sched.Screen()).Msg("Client connected to row stream")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Str("screen", sched.Screen()).Msg("Client disconnected from row stream")
			return

		case rows, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(rowsMessage(sched.Screen(), rows))
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal rows")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: {\"type\":\"heartbeat\",\"timestamp\":%q}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// HandleWebSocket pushes the screen's rows over a websocket. Frames are JSON
// text by default, or msgpack binary with ?format=msgpack.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}
	binary := r.URL.Query().Get("format") == "msgpack"

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// Clients only listen; CloseRead handles control frames and reports disconnects.
	ctx := conn.CloseRead(r.Context())
	updates := sched.Store().Observe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case rows, ok := <-updates:
			if !ok {
				return
			}
			if err := h.writeFrame(ctx, conn, binary, rowsMessage(sched.Screen(), rows)); err != nil {
				h.log.Debug().Err(err).Str("screen", sched.Screen()).Msg("Websocket write failed")
				return
			}
		}
	}
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, binary bool, msg RowsMessage) error {
	var (
		data []byte
		kind = websocket.MessageText
		err  error
	)
	if binary {
		kind = websocket.MessageBinary
		data, err = msgpack.Marshal(msg)
	} else {
		data, err = json.Marshal(msg)
	}
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, kind, data)
}
