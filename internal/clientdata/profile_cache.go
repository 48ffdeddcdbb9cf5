package clientdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ProfileCache serves instrument profiles cache-first. A fresh entry skips the
// network; a failed fetch falls back to a stale entry when one exists.
type ProfileCache struct {
	repo *Repository
	ttl  time.Duration
	log  zerolog.Logger
}

// NewProfileCache creates a profile cache. A non-positive ttl uses TTLInstrumentProfile.
func NewProfileCache(repo *Repository, ttl time.Duration, log zerolog.Logger) *ProfileCache {
	if ttl <= 0 {
		ttl = TTLInstrumentProfile
	}
	return &ProfileCache{
		repo: repo,
		ttl:  ttl,
		log:  log.With().Str("component", "profile_cache").Logger(),
	}
}

func cacheKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Load returns the profile for symbol, calling fetch only on a cache miss or
// expiry.
func (c *ProfileCache) Load(ctx context.Context, symbol string, fetch func(context.Context) (*domain.Profile, error)) (*domain.Profile, error) {
	key := cacheKey(symbol)

	if raw, err := c.repo.GetIfFresh(ctx, TableInstrumentProfiles, key); err != nil {
		c.log.Warn().Err(err).Str("symbol", key).Msg("Profile cache read failed")
	} else if raw != nil {
		if p, err := decodeProfile(raw); err == nil {
			return p, nil
		}
	}

	profile, fetchErr := fetch(ctx)
	if fetchErr == nil && profile != nil {
		if err := c.repo.Store(ctx, TableInstrumentProfiles, key, profile, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("symbol", key).Msg("Failed to cache profile")
		}
		return profile, nil
	}
	if fetchErr == nil {
		fetchErr = fmt.Errorf("empty profile for %s", symbol)
	}

	// A stale profile is better than none.
	if ctx.Err() == nil {
		if raw, err := c.repo.Get(ctx, TableInstrumentProfiles, key); err == nil && raw != nil {
			if p, err := decodeProfile(raw); err == nil {
				c.log.Debug().Err(fetchErr).Str("symbol", key).Msg("Serving stale profile")
				return p, nil
			}
		}
	}

	return nil, fetchErr
}

func decodeProfile(raw json.RawMessage) (*domain.Profile, error) {
	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return &p, nil
}
