package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/watchfolio/internal/config"
	"github.com/aristath/watchfolio/internal/di"
	"github.com/aristath/watchfolio/internal/events"
	"github.com/aristath/watchfolio/internal/modules/rotation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir:             t.TempDir(),
		QuoteProvider:       config.ProviderYahoo,
		MaxCallsPerMinute:   60,
		EmptyBackoff:        500 * time.Millisecond,
		ProfileCacheTTL:     time.Hour,
		CleanupSchedule:     "0 0 3 * * *",
		MaintenanceSchedule: "0 30 3 * * *",
	}
	container, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	return New(Config{Log: zerolog.Nop(), Port: 0, DevMode: true, Container: container}), container
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Router(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "watchfolio", body["service"])
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Router(), http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, map[string]string{"holdings": "ok", "cache": "ok"}, status.Databases)
	assert.Equal(t, 60, status.Limiter.MaxPerMinute)
	require.Len(t, status.Screens, 2)
	for _, screen := range status.Screens {
		assert.Equal(t, rotation.StateIdle, screen.State)
	}
	require.Len(t, status.Jobs, 2)
	assert.Positive(t, status.Goroutines)
}

func TestRunJob(t *testing.T) {
	s, container := newTestServer(t)

	rec := do(t, s.Router(), http.MethodPost, "/api/system/jobs/"+container.CleanupJob.Name()+"/run", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Router(), http.MethodPost, "/api/system/jobs/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.Router(), http.MethodGet, "/api/system/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs JobsStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs.Jobs, 2)
}

func TestRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Router(), http.MethodPost, "/api/owners/u1/holdings/", `{"symbol":"aapl.us","quantity":2,"avg_cost":100}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s.Router(), http.MethodGet, "/api/owners/u1/holdings/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AAPL.US")

	rec = do(t, s.Router(), http.MethodGet, "/api/screens/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Router(), http.MethodGet, "/api/screens/unknown/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsStream(t *testing.T) {
	s, container := newTestServer(t)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream?types=HOLDINGS_CHANGED", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Equal(t, "connected", first["type"])

	// Filtered out
	container.EventManager.EmitTyped("test", &events.SessionData{Type: events.SessionStarted, Screen: "portfolio"})
	container.EventManager.EmitTyped("test", &events.HoldingsChangedData{OwnerID: "u1", Key: 7, Action: "created"})

	next := readEvent(t, reader)
	assert.Equal(t, "HOLDINGS_CHANGED", next["type"])
	assert.Equal(t, "test", next["module"])
}

func readEvent(t *testing.T, reader *bufio.Reader) map[string]interface{} {
	t.Helper()
	for {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data: "))), &event))
		return event
	}
}
