package holdings

import (
	"context"
	"testing"

	"github.com/aristath/watchfolio/internal/domain"
	testingpkg "github.com/aristath/watchfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, _ := testingpkg.NewTestDB(t, "holdings")
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_CreateListOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, h := range testingpkg.NewHoldingFixtures("u1") {
		h.Key = 0
		_, err := repo.Create(ctx, h)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, domain.Holding{OwnerID: "u2", Symbol: "TSLA", Quantity: 1})
	require.NoError(t, err)

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "AAPL", list[0].Symbol)
	assert.Equal(t, "MSFT", list[1].Symbol)
	assert.Equal(t, "NVDA", list[2].Symbol)
	assert.Equal(t, 1500.0, list[0].CostBasis)
	assert.Equal(t, -20.0, list[2].RealizedPnL)

	other, err := repo.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, other, 1)

	empty, err := repo.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRepository_GetUpdateDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	key, err := repo.Create(ctx, domain.Holding{OwnerID: "u1", Symbol: "AAPL", Quantity: 1, AvgCost: 100, CostBasis: 100})
	require.NoError(t, err)

	h, err := repo.Get(ctx, "u1", key)
	require.NoError(t, err)
	assert.Equal(t, key, h.Key)

	_, err = repo.Get(ctx, "u2", key)
	assert.ErrorIs(t, err, ErrNotFound)

	h.Quantity = 3
	h.CostBasis = 330
	require.NoError(t, repo.Update(ctx, *h))

	h, err = repo.Get(ctx, "u1", key)
	require.NoError(t, err)
	assert.Equal(t, 3.0, h.Quantity)
	assert.Equal(t, 330.0, h.CostBasis)

	assert.ErrorIs(t, repo.Update(ctx, domain.Holding{OwnerID: "u1", Key: 999, Symbol: "X"}), ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "u1", key))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", key), ErrNotFound)
}
