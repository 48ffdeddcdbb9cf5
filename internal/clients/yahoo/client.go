// Package yahoo provides a quote provider backed by Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/ratelimit"
)

// ISIN validation pattern (12 characters: 2 letters, 9 alphanumeric, 1 digit)
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

func isISIN(identifier string) bool {
	return isinPattern.MatchString(strings.TrimSpace(strings.ToUpper(identifier)))
}

// SymbolCache stores ISIN to ticker resolutions
type SymbolCache interface {
	Load(ctx context.Context, isin string, resolve func(context.Context) (string, error)) (string, error)
}

// instrumentInfo is the subset of Yahoo's quote summary the client reads
type instrumentInfo struct {
	CurrentPrice  float64
	PreviousClose float64
	LongName      string
	ShortName     string
	Exchange      string
	Industry      string
	Country       string
	QuoteType     string
}

// Client implements domain.QuoteProvider using go-yfinance.
// It never retries: a failed fetch is reported and the caller moves on.
//
// FetchQuote and FetchProfile make one info request each. An ISIN that is
// not yet cached costs one extra lookup request, which claims its own slot
// on the limiter so the process-wide ceiling still holds.
type Client struct {
	limiter *ratelimit.Limiter // optional
	symbols SymbolCache        // optional
	log     zerolog.Logger

	lookupTicker func(isin string) (string, error)
	fetchInfo    func(symbol string) (*instrumentInfo, error)
}

// NewClient creates a new Yahoo Finance client. limiter gates ISIN lookups and
// symbols caches their results; either may be nil.
func NewClient(limiter *ratelimit.Limiter, symbols SymbolCache, log zerolog.Logger) *Client {
	return &Client{
		limiter:      limiter,
		symbols:      symbols,
		log:          log.With().Str("client", "yahoo").Logger(),
		lookupTicker: lookupTicker,
		fetchInfo:    fetchInfo,
	}
}

// ToYahooSymbol converts a broker-style symbol to Yahoo's format.
// .US is stripped, .JP becomes .T (Tokyo) and .GR becomes .AT (Athens).
// Other suffixes pass through unchanged.
func ToYahooSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	switch {
	case strings.HasSuffix(symbol, ".US"):
		return strings.TrimSuffix(symbol, ".US")
	case strings.HasSuffix(symbol, ".JP"):
		return strings.TrimSuffix(symbol, ".JP") + ".T"
	case strings.HasSuffix(symbol, ".GR"):
		return strings.TrimSuffix(symbol, ".GR") + ".AT"
	}
	return symbol
}

// quoteFromPrices builds a quote from the current price and previous close.
// A missing current price is a failed fetch: the previous close is not a live
// price and reporting it would publish a zero move that never happened.
func quoteFromPrices(symbol string, current, prevClose float64) (*domain.Quote, error) {
	if current <= 0 {
		return nil, fmt.Errorf("no current price for %s", symbol)
	}

	quote := &domain.Quote{Symbol: symbol, LastPrice: current}
	if prevClose > 0 {
		change := current - prevClose
		quote.ChangePerShare = domain.Float(change)
		quote.PercentChange = domain.Float(change / prevClose)
	}
	return quote, nil
}

// FetchQuote fetches the latest quote for symbol. go-yfinance takes no
// context, so cancellation is only observed before each request.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	yahooSymbol, err := c.resolveSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := c.fetchInfo(yahooSymbol)
	if err != nil {
		return nil, err
	}

	quote, err := quoteFromPrices(symbol, info.CurrentPrice, info.PreviousClose)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("symbol", symbol).Str("yahoo_symbol", yahooSymbol).Float64("price", quote.LastPrice).Msg("Fetched quote")
	return quote, nil
}

// FetchProfile fetches descriptive instrument data for symbol
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	yahooSymbol, err := c.resolveSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := c.fetchInfo(yahooSymbol)
	if err != nil {
		return nil, err
	}

	name := info.LongName
	if name == "" {
		name = info.ShortName
	}

	return &domain.Profile{
		Symbol:    symbol,
		Name:      name,
		Exchange:  info.Exchange,
		Industry:  info.Industry,
		Country:   info.Country,
		QuoteType: info.QuoteType,
	}, nil
}

// resolveSymbol maps an ISIN to its ticker and converts everything else with
// ToYahooSymbol. Lookups go through the symbol cache and, on a miss, wait for
// their own limiter slot.
func (c *Client) resolveSymbol(ctx context.Context, symbol string) (string, error) {
	if !isISIN(symbol) {
		return ToYahooSymbol(symbol), nil
	}
	isin := strings.ToUpper(strings.TrimSpace(symbol))

	resolve := func(ctx context.Context) (string, error) {
		find := func(context.Context) (string, error) {
			return c.lookupTicker(isin)
		}
		if c.limiter == nil {
			return find(ctx)
		}
		return ratelimit.Admit(ctx, c.limiter, find)
	}

	if c.symbols == nil {
		return resolve(ctx)
	}
	return c.symbols.Load(ctx, isin, resolve)
}

func lookupTicker(isin string) (string, error) {
	lookupClient, err := lookup.New(isin)
	if err != nil {
		return "", fmt.Errorf("failed to create lookup client: %w", err)
	}
	defer lookupClient.Close()

	results, err := lookupClient.Stock(1)
	if err != nil {
		return "", fmt.Errorf("failed to lookup ISIN %s: %w", isin, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no ticker found for ISIN: %s", isin)
	}
	return results[0].Symbol, nil
}

func fetchInfo(symbol string) (*instrumentInfo, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	info, err := t.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get info for %s: %w", symbol, err)
	}
	if info == nil {
		return nil, fmt.Errorf("no info for %s", symbol)
	}

	return &instrumentInfo{
		CurrentPrice:  info.CurrentPrice,
		PreviousClose: info.RegularMarketPreviousClose,
		LongName:      info.LongName,
		ShortName:     info.ShortName,
		Exchange:      info.Exchange,
		Industry:      info.Industry,
		Country:       info.Country,
		QuoteType:     info.QuoteType,
	}, nil
}

var _ domain.QuoteProvider = (*Client)(nil)
