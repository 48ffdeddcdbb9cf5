// Package livestate holds the observable per-screen table of holdings
// overlaid with their most recent quote-derived metrics.
package livestate

import (
	"math"

	"github.com/aristath/watchfolio/internal/domain"
)

// NormalizePercent converts a provider percent change to percent units.
// Values with magnitude <= 1 are treated as fractions (0.015 -> 1.5).
// A true move of under 1% reported already in percent units is misread as a
// fraction; providers do not tag their unit, so the ambiguity is accepted.
func NormalizePercent(p float64) float64 {
	if math.Abs(p) <= 1 {
		return p * 100
	}
	return p
}

// Derive computes live fields for holding h from quote q.
// previousPrevClose is the row's last known previous close, used when the
// quote carries no per-share change. Unknown inputs yield unknown outputs.
func Derive(h domain.Holding, q domain.Quote, previousPrevClose *float64) domain.LiveFields {
	last := q.LastPrice

	var prevClose float64
	switch {
	case q.ChangePerShare != nil:
		prevClose = last - *q.ChangePerShare
	case previousPrevClose != nil:
		prevClose = *previousPrevClose
	default:
		prevClose = last
	}

	marketValue := last * h.Quantity
	unrealized := marketValue - h.CostBasis
	total := unrealized + h.RealizedPnL

	fields := domain.LiveFields{
		LastPrice:     domain.Float(last),
		PrevClose:     domain.Float(prevClose),
		MarketValue:   domain.Float(marketValue),
		UnrealizedPnL: domain.Float(unrealized),
		TotalPnL:      domain.Float(total),
	}

	if q.PercentChange != nil {
		fields.DayChangePct = domain.Float(NormalizePercent(*q.PercentChange))
	}
	if q.ChangePerShare != nil {
		fields.DayChange = domain.Float(*q.ChangePerShare * h.Quantity)
	}

	return fields
}
