package clientdata

import "time"

// TTL constants, added to time.Now() when storing to calculate expires_at.
const (
	// Instrument name, exchange, industry: effectively static
	TTLInstrumentProfile = 7 * 24 * time.Hour

	// ISIN to ticker mapping: changes only on relisting
	TTLSymbolResolution = 30 * 24 * time.Hour
)
