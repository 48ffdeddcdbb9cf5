package sdk

import (
	"context"
	"fmt"
	"strings"
)

// GetQuotes gets the latest quotes for symbols (authorized)
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]interface{}, error) {
	params := GetStockQuotesJSONParams{
		Tickers: strings.Join(symbols, ","),
	}
	return c.authorizedRequest(ctx, "getStockQuotesJson", params)
}

// FindSymbol finds a security by symbol or ISIN (no authentication)
func (c *Client) FindSymbol(ctx context.Context, symbol string, exchange *string) (map[string]interface{}, error) {
	text := symbol
	if exchange != nil {
		text = fmt.Sprintf("%s@%s", symbol, *exchange)
	}
	return c.plainRequest(ctx, "tickerFinder", TickerFinderParams{Text: text})
}
