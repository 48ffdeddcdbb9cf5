package livestate

import (
	"testing"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.Rows)
	assert.Nil(t, s.MarketValue)
	assert.Nil(t, s.DayChangePct)
}

func TestSummarize_OnlyKnownValuesContribute(t *testing.T) {
	store := NewStore(zerolog.Nop())
	store.Reconcile([]domain.Holding{
		{Key: 1, Symbol: "AAPL", Quantity: 10, CostBasis: 1000, RealizedPnL: 5},
		{Key: 2, Symbol: "MSFT", Quantity: 2, CostBasis: 500},
		{Key: 3, Symbol: "NVDA", Quantity: 1, CostBasis: 400},
	})
	store.ApplyQuote(1, "AAPL", domain.Quote{LastPrice: 110, ChangePerShare: domain.Float(10)})
	store.ApplyQuote(2, "MSFT", domain.Quote{LastPrice: 300})

	s := Summarize(store.Snapshot())

	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 2, s.Priced)
	assert.Equal(t, 1900.0, s.CostBasis)
	assert.Equal(t, 5.0, s.RealizedPnL)
	require.NotNil(t, s.MarketValue)
	assert.Equal(t, 1700.0, *s.MarketValue)
	assert.Equal(t, 200.0, *s.UnrealizedPnL)
	assert.Equal(t, 205.0, *s.TotalPnL)
	assert.Equal(t, 100.0, *s.DayChange)
	assert.InDelta(t, 10.0, *s.DayChangePct, 1e-9)
}
