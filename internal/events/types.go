// Package events provides the in-process event bus used to fan out holdings
// changes and quote refresh activity.
package events

import "time"

// EventType identifies a kind of event
type EventType string

const (
	// HoldingsChanged fires after any holdings mutation for an owner
	HoldingsChanged EventType = "HOLDINGS_CHANGED"
	// QuoteFetched fires when a rotation tick merged a fresh quote
	QuoteFetched EventType = "QUOTE_FETCHED"
	// QuoteFetchFailed fires when a rotation tick's fetch failed
	QuoteFetchFailed EventType = "QUOTE_FETCH_FAILED"
	// ProfileLoaded fires when a details screen resolved its instrument profile
	ProfileLoaded EventType = "PROFILE_LOADED"
	// SessionStarted fires when a screen starts a refresh session
	SessionStarted EventType = "SESSION_STARTED"
	// SessionStopped fires when a screen's refresh session ends
	SessionStopped EventType = "SESSION_STOPPED"
	// ErrorOccurred reports an error from a background component
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// EventData is implemented by every typed event payload
type EventData interface {
	EventType() EventType
}

// Event is one emission on the bus
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// HoldingsChangedData contains data for HoldingsChanged events
type HoldingsChangedData struct {
	OwnerID string `json:"owner_id"`
	Key     int64  `json:"key,omitempty"`
	Action  string `json:"action"` // created, updated, deleted
}

// EventType returns the event type for HoldingsChangedData
func (d *HoldingsChangedData) EventType() EventType {
	return HoldingsChanged
}

// QuoteFetchedData contains data for QuoteFetched events
type QuoteFetchedData struct {
	Screen    string  `json:"screen"`
	Session   string  `json:"session"`
	Key       int64   `json:"key"`
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
}

// EventType returns the event type for QuoteFetchedData
func (d *QuoteFetchedData) EventType() EventType {
	return QuoteFetched
}

// QuoteFetchFailedData contains data for QuoteFetchFailed events
type QuoteFetchFailedData struct {
	Screen  string `json:"screen"`
	Session string `json:"session"`
	Key     int64  `json:"key"`
	Symbol  string `json:"symbol"`
	Error   string `json:"error"`
}

// EventType returns the event type for QuoteFetchFailedData
func (d *QuoteFetchFailedData) EventType() EventType {
	return QuoteFetchFailed
}

// ProfileLoadedData contains data for ProfileLoaded events
type ProfileLoadedData struct {
	Screen string `json:"screen"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// EventType returns the event type for ProfileLoadedData
func (d *ProfileLoadedData) EventType() EventType {
	return ProfileLoaded
}

// SessionData contains data for SessionStarted and SessionStopped events
type SessionData struct {
	Type    EventType `json:"-"`
	Screen  string    `json:"screen"`
	Session string    `json:"session"`
	OwnerID string    `json:"owner_id"`
	Symbol  string    `json:"symbol,omitempty"`
}

// EventType returns SessionStarted or SessionStopped
func (d *SessionData) EventType() EventType {
	return d.Type
}

// ErrorData contains data for ErrorOccurred events
type ErrorData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorData
func (d *ErrorData) EventType() EventType {
	return ErrorOccurred
}
