package clientdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolCache_ResolvesOnceThenServesCache(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewSymbolCache(repo, time.Hour, zerolog.Nop())

	calls := 0
	resolve := func(ctx context.Context) (string, error) {
		calls++
		return "AAPL", nil
	}

	symbol, err := cache.Load(context.Background(), "us0378331005", resolve)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", symbol)

	symbol, err = cache.Load(context.Background(), "US0378331005", resolve)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", symbol)
	assert.Equal(t, 1, calls)
}

func TestSymbolCache_StaleFallbackOnResolveError(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewSymbolCache(repo, time.Hour, zerolog.Nop())

	_, err := cache.Load(context.Background(), "US0378331005", func(ctx context.Context) (string, error) {
		return "AAPL", nil
	})
	require.NoError(t, err)

	repo.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	symbol, err := cache.Load(context.Background(), "US0378331005", func(ctx context.Context) (string, error) {
		return "", errors.New("lookup unavailable")
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", symbol)
}

func TestSymbolCache_ErrorWithoutEntry(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewSymbolCache(repo, 0, zerolog.Nop())
	assert.Equal(t, TTLSymbolResolution, cache.ttl)

	_, err := cache.Load(context.Background(), "US0378331005", func(ctx context.Context) (string, error) {
		return "", nil
	})
	assert.Error(t, err)
}
