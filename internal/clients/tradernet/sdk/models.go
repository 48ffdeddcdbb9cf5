package sdk

// GetStockQuotesJSONParams represents parameters for the getStockQuotesJson command
type GetStockQuotesJSONParams struct {
	Tickers string `json:"tickers"` // Comma-separated: "AAPL.US,MSFT.US"
}

// TickerFinderParams represents parameters for the tickerFinder command
type TickerFinderParams struct {
	Text string `json:"text"` // Symbol, ISIN or "symbol@exchange"
}
