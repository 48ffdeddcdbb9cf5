// Package domain provides core domain models and types.
package domain

// Holding is one row of an owner's portfolio as supplied by the holdings source.
// Key is stable across refreshes and identifies the row in live state.
type Holding struct {
	Key         int64   `json:"key"`
	OwnerID     string  `json:"owner_id"`
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AvgCost     float64 `json:"avg_cost"`
	CostBasis   float64 `json:"cost_basis"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// Quote is a single provider response for one symbol.
// ChangePerShare and PercentChange are nil when the provider did not report them.
// PercentChange may be a fraction (0.015) or already scaled (1.5).
type Quote struct {
	Symbol         string   `json:"symbol"`
	LastPrice      float64  `json:"last_price"`
	ChangePerShare *float64 `json:"change_per_share,omitempty"`
	PercentChange  *float64 `json:"percent_change,omitempty"`
}

// Profile holds descriptive data for an instrument, shown on the details screen.
type Profile struct {
	Symbol    string `json:"symbol" msgpack:"symbol"`
	Name      string `json:"name" msgpack:"name"`
	Exchange  string `json:"exchange,omitempty" msgpack:"exchange,omitempty"`
	Industry  string `json:"industry,omitempty" msgpack:"industry,omitempty"`
	Country   string `json:"country,omitempty" msgpack:"country,omitempty"`
	Currency  string `json:"currency,omitempty" msgpack:"currency,omitempty"`
	QuoteType string `json:"quote_type,omitempty" msgpack:"quote_type,omitempty"`
}

// LiveFields are the quote-derived metrics of a row. Nil means unknown.
type LiveFields struct {
	LastPrice     *float64 `json:"last_price" msgpack:"last_price"`
	PrevClose     *float64 `json:"prev_close" msgpack:"prev_close"`
	UnrealizedPnL *float64 `json:"unrealized_pnl" msgpack:"unrealized_pnl"`
	DayChangePct  *float64 `json:"day_change_pct" msgpack:"day_change_pct"`
	MarketValue   *float64 `json:"market_value" msgpack:"market_value"`
	TotalPnL      *float64 `json:"total_pnl" msgpack:"total_pnl"`
	DayChange     *float64 `json:"day_change" msgpack:"day_change"`
}

// LiveRow is a holding's static fields overlaid with its last known live fields.
type LiveRow struct {
	Key         int64   `json:"key" msgpack:"key"`
	Symbol      string  `json:"symbol" msgpack:"symbol"`
	Quantity    float64 `json:"quantity" msgpack:"quantity"`
	AvgCost     float64 `json:"avg_cost" msgpack:"avg_cost"`
	CostBasis   float64 `json:"cost_basis" msgpack:"cost_basis"`
	RealizedPnL float64 `json:"realized_pnl" msgpack:"realized_pnl"`
	LiveFields
}

// Holding returns the static portion of the row.
func (r LiveRow) Holding() Holding {
	return Holding{
		Key:         r.Key,
		Symbol:      r.Symbol,
		Quantity:    r.Quantity,
		AvgCost:     r.AvgCost,
		CostBasis:   r.CostBasis,
		RealizedPnL: r.RealizedPnL,
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
