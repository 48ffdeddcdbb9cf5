// Package tradernet provides a quote provider backed by the Tradernet API.
package tradernet

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/watchfolio/internal/clients/tradernet/sdk"
	"github.com/aristath/watchfolio/internal/domain"
)

// SDKClient is the subset of the SDK used by Client
type SDKClient interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]interface{}, error)
	FindSymbol(ctx context.Context, symbol string, exchange *string) (map[string]interface{}, error)
}

// Client implements domain.QuoteProvider on top of the Tradernet SDK.
// Every method issues exactly one upstream request.
type Client struct {
	sdkClient SDKClient
	log       zerolog.Logger
}

// NewClient creates a new Tradernet client
func NewClient(apiKey, apiSecret, baseURL string, log zerolog.Logger) *Client {
	return NewClientWithSDK(sdk.NewClient(apiKey, apiSecret, baseURL, log), log)
}

// NewClientWithSDK creates a new Tradernet client with a provided SDK client (for testing)
func NewClientWithSDK(sdkClient SDKClient, log zerolog.Logger) *Client {
	return &Client{
		sdkClient: sdkClient,
		log:       log.With().Str("client", "tradernet").Logger(),
	}
}

// FetchQuote fetches the latest quote for symbol
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	result, err := c.sdkClient.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	quote, err := transformQuote(result, symbol)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("symbol", symbol).Float64("price", quote.LastPrice).Msg("Fetched quote")
	return quote, nil
}

// FetchProfile looks symbol up with tickerFinder
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*domain.Profile, error) {
	result, err := c.sdkClient.FindSymbol(ctx, symbol, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find symbol %s: %w", symbol, err)
	}
	return transformProfile(result, symbol)
}

var _ domain.QuoteProvider = (*Client)(nil)
