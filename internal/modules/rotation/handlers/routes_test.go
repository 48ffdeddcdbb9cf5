package handlers

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

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/modules/rotation"
	"github.com/aristath/watchfolio/internal/ratelimit"
	testingpkg "github.com/aristath/watchfolio/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

type env struct {
	router   chi.Router
	holdings *testingpkg.MockHoldingsSource
	provider *testingpkg.MockQuoteProvider
	manager  *rotation.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()

	limiter, err := ratelimit.New(60000, zerolog.Nop())
	require.NoError(t, err)

	e := &env{
		holdings: testingpkg.NewMockHoldingsSource(),
		provider: testingpkg.NewMockQuoteProvider(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.manager = rotation.NewManager(ctx, rotation.Deps{
		Holdings:     e.holdings,
		Provider:     e.provider,
		Limiter:      limiter,
		EmptyBackoff: 10 * time.Millisecond,
		Log:          zerolog.Nop(),
	})
	t.Cleanup(func() {
		e.manager.StopAll()
		cancel()
	})

	h := NewHandler(e.manager, zerolog.Nop())
	e.router = chi.NewRouter()
	h.RegisterRoutes(e.router, middleware.Timeout(5*time.Second))

	e.holdings.Set("u1", testingpkg.NewHoldingFixtures("u1")[:2])
	e.provider.SetQuote("AAPL", testingpkg.NewQuoteFixture("AAPL", 160, 1.5, 0.0095))
	e.provider.SetQuote("MSFT", testingpkg.NewQuoteFixture("MSFT", 310, -2, -0.0064))
	e.provider.SetProfile("MSFT", domain.Profile{Symbol: "MSFT", Name: "Microsoft Corporation"})

	return e
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutes(t *testing.T) {
	e := newEnv(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/screens/"},
		{"GET", "/screens/portfolio/"},
		{"POST", "/screens/portfolio/start"},
		{"POST", "/screens/portfolio/stop"},
		{"GET", "/screens/portfolio/summary"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := e.do(t, tc.method, tc.path, "{}")
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
			if rec.Code == http.StatusNotFound {
				assert.Contains(t, rec.Body.String(), "unknown screen")
			}
		})
	}
}

func TestHandleStart_Validation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/screens/portfolio/start", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/screens/portfolio/start", `{"owner_id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStart_GeneratesSessionAndServesRows(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/screens/portfolio/start", `{"owner_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var status rotation.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, rotation.StateRunning, status.State)
	assert.Len(t, status.Session, 36)

	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/screens/portfolio/", "")
		var resp ScreenResponse
		if json.Unmarshal(rec.Body.Bytes(), &resp) != nil || len(resp.Rows) != 2 {
			return false
		}
		return resp.Rows[0].LastPrice != nil && resp.Rows[1].LastPrice != nil
	}, 2*time.Second, 5*time.Millisecond)

	rec = e.do(t, http.MethodGet, "/screens/portfolio/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2.0, summary["priced"])
	assert.InDelta(t, 160*10+310*5, summary["market_value"], 1e-9)

	rec = e.do(t, http.MethodPost, "/screens/portfolio/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, rotation.StateStopped, status.State)

	rec = e.do(t, http.MethodGet, "/screens/", "")
	var statuses []rotation.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "details", statuses[0].Screen)
	assert.Equal(t, rotation.StateIdle, statuses[0].State)
	assert.Equal(t, "portfolio", statuses[1].Screen)
	assert.Equal(t, rotation.StateStopped, statuses[1].State)
}

func TestHandleStart_UnknownScreen(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/screens/watchlist/start", `{"owner_id":"u1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/screens/watchlist/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/screens/", "")
	var statuses []rotation.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	assert.Len(t, statuses, 2)
	assert.Zero(t, e.holdings.ObserverCount("u1"))
}

func TestHandleGet_DetailsProfile(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/screens/details/start", `{"owner_id":"u1","symbol":"msft","session":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/screens/details/", "")
		var resp ScreenResponse
		if json.Unmarshal(rec.Body.Bytes(), &resp) != nil {
			return false
		}
		return resp.Profile != nil && resp.Profile.Name == "Microsoft Corporation" &&
			resp.Status.Session == "abc" && len(resp.Rows) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleStream_SendsCurrentRows(t *testing.T) {
	e := newEnv(t)
	_, err := e.manager.Start("portfolio", "s1", rotation.Target{OwnerID: "u1"})
	require.NoError(t, err)

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/screens/portfolio/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(line, []byte("data: ")))

	var msg RowsMessage
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data: "))), &msg))
	assert.Equal(t, "rows", msg.Type)
	assert.Equal(t, "portfolio", msg.Screen)
}

func TestHandleStream_UnknownScreen(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/screens/nope/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWebSocket_JSONAndMsgpack(t *testing.T) {
	e := newEnv(t)
	_, err := e.manager.Start("portfolio", "s1", rotation.Target{OwnerID: "u1"})
	require.NoError(t, err)

	srv := httptest.NewServer(e.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/screens/portfolio/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	kind, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, kind)

	var msg RowsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "portfolio", msg.Screen)
	conn.Close(websocket.StatusNormalClosure, "")

	conn, _, err = websocket.Dial(ctx, wsURL+"?format=msgpack", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	kind, data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, kind)

	var decoded RowsMessage
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, "rows", decoded.Type)
	assert.Equal(t, "portfolio", decoded.Screen)
}
