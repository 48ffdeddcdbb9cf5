// Package sdk is a minimal signed HTTP client for the Tradernet API.
//
// The client issues exactly one HTTP request per call and never waits
// between calls. Pacing is the caller's job.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public Tradernet API host
const DefaultBaseURL = "https://freedom24.com"

const (
	userAgent      = "Mozilla/5.0 (compatible; TradernetSDK/2.0)"
	maxLoggedBody  = 500
	requestTimeout = 30 * time.Second
)

// ErrInvalidKeypair is returned by authorized calls made without credentials
var ErrInvalidKeypair = errors.New("keypair is not valid")

// Client represents the Tradernet SDK client
type Client struct {
	publicKey  string
	privateKey string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Tradernet SDK client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(publicKey, privateKey, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		publicKey:  publicKey,
		privateKey: privateKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.With().Str("component", "tradernet-sdk").Logger(),
		now:        time.Now,
	}
}

// authorizedRequest POSTs a signed command to /api/{cmd}
func (c *Client) authorizedRequest(ctx context.Context, cmd string, params interface{}) (map[string]interface{}, error) {
	if c.publicKey == "" || c.privateKey == "" {
		return nil, ErrInvalidKeypair
	}

	payload, err := stringify(params)
	if err != nil {
		return nil, fmt.Errorf("failed to stringify params: %w", err)
	}

	// Seconds, not milliseconds. The signature covers payload then timestamp.
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := sign(c.privateKey, payload+timestamp)

	requestURL := fmt.Sprintf("%s/api/%s", c.baseURL, cmd)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-NtApi-PublicKey", c.publicKey)
	req.Header.Set("X-NtApi-Timestamp", timestamp)
	req.Header.Set("X-NtApi-Sig", signature)

	return c.do(req, cmd)
}

// plainRequest GETs /api?q={"cmd":...,"params":...} without authentication
func (c *Client) plainRequest(ctx context.Context, cmd string, params interface{}) (map[string]interface{}, error) {
	message := struct {
		Cmd    string      `json:"cmd"`
		Params interface{} `json:"params,omitempty"`
	}{Cmd: cmd, Params: params}

	messageJSON, err := stringify(message)
	if err != nil {
		return nil, fmt.Errorf("failed to stringify message: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/api")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("q", messageJSON)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	return c.do(req, cmd)
}

func (c *Client) do(req *http.Request, cmd string) (map[string]interface{}, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", truncate(body)).
			Str("cmd", cmd).
			Msg("API returned non-200 status")
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, resp.Status)
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, truncate(body))
	}

	result := normalize(raw)
	if errMsg, ok := result["errMsg"].(string); ok && errMsg != "" {
		return nil, fmt.Errorf("tradernet %s: %s", cmd, errMsg)
	}
	return result, nil
}

// normalize wraps non-object responses under a "result" key
func normalize(raw interface{}) map[string]interface{} {
	if m, ok := raw.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"result": raw}
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}
