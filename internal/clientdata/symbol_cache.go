package clientdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SymbolCache remembers which provider ticker an ISIN resolves to, so a
// resolution costs one upstream call per TTL instead of one per quote.
type SymbolCache struct {
	repo *Repository
	ttl  time.Duration
	log  zerolog.Logger
}

// NewSymbolCache creates a symbol cache. A non-positive ttl uses TTLSymbolResolution.
func NewSymbolCache(repo *Repository, ttl time.Duration, log zerolog.Logger) *SymbolCache {
	if ttl <= 0 {
		ttl = TTLSymbolResolution
	}
	return &SymbolCache{
		repo: repo,
		ttl:  ttl,
		log:  log.With().Str("component", "symbol_cache").Logger(),
	}
}

// Load returns the ticker for isin, calling resolve only on a miss or expiry.
// A failed resolve falls back to an expired mapping when one exists.
func (c *SymbolCache) Load(ctx context.Context, isin string, resolve func(context.Context) (string, error)) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(isin))

	if raw, err := c.repo.GetIfFresh(ctx, TableSymbolResolutions, key); err != nil {
		c.log.Warn().Err(err).Str("isin", key).Msg("Symbol cache read failed")
	} else if raw != nil {
		if symbol, err := decodeSymbol(raw); err == nil {
			return symbol, nil
		}
	}

	symbol, resolveErr := resolve(ctx)
	if resolveErr == nil && symbol != "" {
		if err := c.repo.Store(ctx, TableSymbolResolutions, key, symbol, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("isin", key).Msg("Failed to cache symbol resolution")
		}
		return symbol, nil
	}
	if resolveErr == nil {
		resolveErr = fmt.Errorf("empty symbol for %s", key)
	}

	if ctx.Err() == nil {
		if raw, err := c.repo.Get(ctx, TableSymbolResolutions, key); err == nil && raw != nil {
			if symbol, err := decodeSymbol(raw); err == nil {
				c.log.Debug().Err(resolveErr).Str("isin", key).Msg("Serving stale symbol resolution")
				return symbol, nil
			}
		}
	}

	return "", resolveErr
}

func decodeSymbol(raw json.RawMessage) (string, error) {
	var symbol string
	if err := json.Unmarshal(raw, &symbol); err != nil {
		return "", fmt.Errorf("failed to decode cached symbol: %w", err)
	}
	if symbol == "" {
		return "", fmt.Errorf("cached symbol is empty")
	}
	return symbol, nil
}
