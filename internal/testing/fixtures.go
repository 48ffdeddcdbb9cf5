package testing

import "github.com/aristath/watchfolio/internal/domain"

// NewHoldingFixtures returns a small owner portfolio keyed 1..3
func NewHoldingFixtures(ownerID string) []domain.Holding {
	return []domain.Holding{
		{Key: 1, OwnerID: ownerID, Symbol: "AAPL", Quantity: 10, AvgCost: 150, CostBasis: 1500, RealizedPnL: 12.5},
		{Key: 2, OwnerID: ownerID, Symbol: "MSFT", Quantity: 5, AvgCost: 300, CostBasis: 1500},
		{Key: 3, OwnerID: ownerID, Symbol: "NVDA", Quantity: 2, AvgCost: 450, CostBasis: 900, RealizedPnL: -20},
	}
}

// NewQuoteFixture returns a quote with both change fields populated
func NewQuoteFixture(symbol string, last, change, pctFraction float64) domain.Quote {
	return domain.Quote{
		Symbol:         symbol,
		LastPrice:      last,
		ChangePerShare: domain.Float(change),
		PercentChange:  domain.Float(pctFraction),
	}
}
