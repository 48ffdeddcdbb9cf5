package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus()

	var got []*Event
	bus.Subscribe(HoldingsChanged, func(e *Event) { got = append(got, e) })

	bus.Publish(&Event{Type: HoldingsChanged, Data: &HoldingsChangedData{OwnerID: "u1"}})
	bus.Publish(&Event{Type: QuoteFetched, Data: &QuoteFetchedData{Symbol: "AAPL"}})

	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].Data.(*HoldingsChangedData).OwnerID)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	unsubscribe := bus.Subscribe(QuoteFetched, func(e *Event) { count++ })
	bus.Publish(&Event{Type: QuoteFetched})

	unsubscribe()
	unsubscribe() // idempotent
	bus.Publish(&Event{Type: QuoteFetched})

	assert.Equal(t, 1, count)
	assert.Zero(t, bus.SubscriberCount())
}

func TestBus_SubscribeAllWithFilter(t *testing.T) {
	bus := NewBus()

	var all, filtered []EventType
	bus.SubscribeAll(func(e *Event) { all = append(all, e.Type) })
	bus.SubscribeAll(func(e *Event) { filtered = append(filtered, e.Type) }, QuoteFetchFailed, ErrorOccurred)

	for _, et := range []EventType{HoldingsChanged, QuoteFetchFailed, SessionStarted, ErrorOccurred} {
		bus.Publish(&Event{Type: et})
	}

	assert.Equal(t, []EventType{HoldingsChanged, QuoteFetchFailed, SessionStarted, ErrorOccurred}, all)
	assert.Equal(t, []EventType{QuoteFetchFailed, ErrorOccurred}, filtered)
}

func TestBus_HandlerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(SessionStopped, func(e *Event) {
		calls++
		unsubscribe()
	})

	bus.Publish(&Event{Type: SessionStopped})
	bus.Publish(&Event{Type: SessionStopped})
	assert.Equal(t, 1, calls)
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	received := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.SubscribeAll(func(e *Event) {
				mu.Lock()
				received++
				mu.Unlock()
			})
			defer unsub()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(&Event{Type: QuoteFetched})
		}()
	}
	wg.Wait()

	assert.Zero(t, bus.SubscriberCount())
}

func TestManager_EmitTypedStampsEvent(t *testing.T) {
	bus := NewBus()
	mgr := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(SessionStarted, func(e *Event) { got = e })

	mgr.EmitTyped("rotation", &SessionData{Type: SessionStarted, Screen: "portfolio", Session: "s1"})

	require.NotNil(t, got)
	assert.Equal(t, SessionStarted, got.Type)
	assert.Equal(t, "rotation", got.Module)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "portfolio", got.Data.(*SessionData).Screen)
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	mgr := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = e })

	mgr.EmitError("scheduler", errors.New("cleanup failed"), map[string]interface{}{"job": "client_data_cleanup"})

	require.NotNil(t, got)
	data := got.Data.(*ErrorData)
	assert.Equal(t, "cleanup failed", data.Error)
	assert.Equal(t, "client_data_cleanup", data.Context["job"])
}
