package holdings

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	return NewService(newTestRepository(t), events.NewManager(bus, zerolog.Nop()), zerolog.Nop()), bus
}

func receive(t *testing.T, ch <-chan []domain.Holding) []domain.Holding {
	t.Helper()
	select {
	case h, ok := <-ch:
		require.True(t, ok, "channel closed")
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for holdings snapshot")
		return nil
	}
}

func TestInput_Validate(t *testing.T) {
	in := Input{Symbol: "  aapl ", Quantity: 2, AvgCost: 10}
	require.NoError(t, in.Validate())
	assert.Equal(t, "AAPL", in.Symbol)

	assert.Error(t, (&Input{Symbol: " "}).Validate())
	assert.Error(t, (&Input{Symbol: "X", Quantity: -1}).Validate())
	assert.Error(t, (&Input{Symbol: "X", AvgCost: -1}).Validate())
}

func TestService_CreateDefaultsCostBasis(t *testing.T) {
	svc, _ := newTestService(t)

	h, err := svc.Create(context.Background(), "u1", Input{Symbol: "aapl", Quantity: 4, AvgCost: 25})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, 100.0, h.CostBasis)
	assert.NotZero(t, h.Key)

	h, err = svc.Create(context.Background(), "u1", Input{Symbol: "MSFT", Quantity: 1, AvgCost: 300, CostBasis: domain.Float(305)})
	require.NoError(t, err)
	assert.Equal(t, 305.0, h.CostBasis)

	_, err = svc.Create(context.Background(), "u1", Input{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_MutationsEmitHoldingsChanged(t *testing.T) {
	svc, bus := newTestService(t)
	ctx := context.Background()

	var actions []string
	bus.Subscribe(events.HoldingsChanged, func(e *events.Event) {
		actions = append(actions, e.Data.(*events.HoldingsChangedData).Action)
	})

	h, err := svc.Create(ctx, "u1", Input{Symbol: "AAPL", Quantity: 1, AvgCost: 1})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "u1", h.Key, Input{Symbol: "AAPL", Quantity: 2, AvgCost: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "u1", h.Key))

	_, err = svc.Update(ctx, "u1", h.Key, Input{Symbol: "AAPL"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"created", "updated", "deleted"}, actions)
}

func TestService_ObserveStreamsSnapshots(t *testing.T) {
	svc, bus := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.Create(context.Background(), "u1", Input{Symbol: "AAPL", Quantity: 1, AvgCost: 1})
	require.NoError(t, err)

	ch, err := svc.Observe(ctx, "u1")
	require.NoError(t, err)

	first := receive(t, ch)
	require.Len(t, first, 1)
	assert.Equal(t, "AAPL", first[0].Symbol)

	// Other owners do not wake this observer.
	_, err = svc.Create(context.Background(), "u2", Input{Symbol: "TSLA", Quantity: 1})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "u1", Input{Symbol: "MSFT", Quantity: 1, AvgCost: 1})
	require.NoError(t, err)

	next := receive(t, ch)
	require.Len(t, next, 2)
	assert.Equal(t, "MSFT", next[1].Symbol)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, bus.SubscriberCount())
}
