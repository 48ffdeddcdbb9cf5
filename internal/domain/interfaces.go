package domain

import "context"

// HoldingsSource streams an owner's holdings. The returned channel receives the
// full ordered snapshot once on subscription and again after every change, and
// is closed when ctx is done.
type HoldingsSource interface {
	Observe(ctx context.Context, ownerID string) (<-chan []Holding, error)
}

// QuoteProvider is the metered upstream market data API.
// Implementations must not retry or pace themselves; callers gate every call.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
	FetchProfile(ctx context.Context, symbol string) (*Profile, error)
}
