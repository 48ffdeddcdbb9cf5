package clientdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetch struct {
	calls   int
	profile *domain.Profile
	err     error
}

func (f *countingFetch) fetch(ctx context.Context) (*domain.Profile, error) {
	f.calls++
	return f.profile, f.err
}

func TestProfileCache_FetchesOnceThenServesCache(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewProfileCache(repo, time.Hour, zerolog.Nop())
	f := &countingFetch{profile: &domain.Profile{Symbol: "AAPL", Name: "Apple Inc."}}

	p, err := cache.Load(context.Background(), "aapl", f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", p.Name)

	p, err = cache.Load(context.Background(), "AAPL", f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", p.Name)
	assert.Equal(t, 1, f.calls)
}

func TestProfileCache_ExpiredRefetches(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewProfileCache(repo, time.Hour, zerolog.Nop())
	f := &countingFetch{profile: &domain.Profile{Symbol: "AAPL", Name: "Apple Inc."}}

	_, err := cache.Load(context.Background(), "AAPL", f.fetch)
	require.NoError(t, err)

	repo.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	f.profile = &domain.Profile{Symbol: "AAPL", Name: "Apple"}

	p, err := cache.Load(context.Background(), "AAPL", f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "Apple", p.Name)
	assert.Equal(t, 2, f.calls)
}

func TestProfileCache_StaleFallbackOnFetchError(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewProfileCache(repo, time.Hour, zerolog.Nop())
	f := &countingFetch{profile: &domain.Profile{Symbol: "MSFT", Name: "Microsoft"}}

	_, err := cache.Load(context.Background(), "MSFT", f.fetch)
	require.NoError(t, err)

	repo.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	f.profile = nil
	f.err = errors.New("upstream down")

	p, err := cache.Load(context.Background(), "MSFT", f.fetch)
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", p.Name)
}

func TestProfileCache_ErrorWithoutCache(t *testing.T) {
	repo := newTestRepo(t)
	cache := NewProfileCache(repo, 0, zerolog.Nop())
	f := &countingFetch{err: errors.New("upstream down")}

	_, err := cache.Load(context.Background(), "TSLA", f.fetch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	f.err = nil
	_, err = cache.Load(context.Background(), "TSLA", f.fetch)
	assert.Error(t, err)
}
