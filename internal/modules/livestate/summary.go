package livestate

import (
	"github.com/aristath/watchfolio/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Summary aggregates a screen's rows. Totals only include rows whose value is
// known; a total with no contributing rows is nil.
type Summary struct {
	Rows          int      `json:"rows"`
	Priced        int      `json:"priced"`
	CostBasis     float64  `json:"cost_basis"`
	RealizedPnL   float64  `json:"realized_pnl"`
	MarketValue   *float64 `json:"market_value"`
	UnrealizedPnL *float64 `json:"unrealized_pnl"`
	TotalPnL      *float64 `json:"total_pnl"`
	DayChange     *float64 `json:"day_change"`
	DayChangePct  *float64 `json:"day_change_pct"`
}

// Summarize computes totals over rows
func Summarize(rows []domain.LiveRow) Summary {
	s := Summary{Rows: len(rows)}

	var costs, realized, values, unrealized, totals, dayChanges, dayBase []float64
	for _, r := range rows {
		costs = append(costs, r.CostBasis)
		realized = append(realized, r.RealizedPnL)

		if r.LastPrice != nil {
			s.Priced++
		}
		if r.MarketValue != nil {
			values = append(values, *r.MarketValue)
		}
		if r.UnrealizedPnL != nil {
			unrealized = append(unrealized, *r.UnrealizedPnL)
		}
		if r.TotalPnL != nil {
			totals = append(totals, *r.TotalPnL)
		}
		if r.DayChange != nil && r.MarketValue != nil {
			dayChanges = append(dayChanges, *r.DayChange)
			dayBase = append(dayBase, *r.MarketValue-*r.DayChange)
		}
	}

	s.CostBasis = floats.Sum(costs)
	s.RealizedPnL = floats.Sum(realized)
	s.MarketValue = sumOrNil(values)
	s.UnrealizedPnL = sumOrNil(unrealized)
	s.TotalPnL = sumOrNil(totals)
	s.DayChange = sumOrNil(dayChanges)

	if base := floats.Sum(dayBase); len(dayBase) > 0 && base != 0 {
		s.DayChangePct = domain.Float(floats.Sum(dayChanges) / base * 100)
	}

	return s
}

func sumOrNil(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	return domain.Float(floats.Sum(xs))
}
