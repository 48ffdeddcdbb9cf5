package livestate

import (
	"context"
	"sync"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/rs/zerolog"
)

// Store maps instrument keys to rows. Its key set and order always follow the
// most recent Reconcile input; live fields change only through MergeLive or
// ApplyQuote for that exact key. All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	order     []int64
	rows      map[int64]*domain.LiveRow
	observers map[uint64]chan []domain.LiveRow
	nextID    uint64
	log       zerolog.Logger
}

// NewStore creates an empty store
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		rows:      make(map[int64]*domain.LiveRow),
		observers: make(map[uint64]chan []domain.LiveRow),
		log:       log.With().Str("component", "live_state").Logger(),
	}
}

// Observe returns a channel that first yields the current rows and then every
// later change. A slow reader only ever sees the newest snapshot. The channel
// is closed when ctx is done.
func (s *Store) Observe(ctx context.Context) <-chan []domain.LiveRow {
	ch := make(chan []domain.LiveRow, 1)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	ch <- s.snapshotLocked()
	s.observers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.observers, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Snapshot returns a copy of the rows in order
func (s *Store) Snapshot() []domain.LiveRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Row returns the row for key
func (s *Store) Row(key int64) (domain.LiveRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok {
		return domain.LiveRow{}, false
	}
	return *row, true
}

// Len returns the number of rows
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Reconcile makes the store's key set and order match holdings.
// Static fields are overwritten, live fields of surviving keys are kept, new
// keys start with unknown live fields and absent keys are dropped.
// A key repeated within holdings keeps its first occurrence.
func (s *Store) Reconcile(holdings []domain.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]int64, 0, len(holdings))
	rows := make(map[int64]*domain.LiveRow, len(holdings))

	for _, h := range holdings {
		if _, dup := rows[h.Key]; dup {
			s.log.Warn().Int64("key", h.Key).Str("symbol", h.Symbol).Msg("Duplicate key in holdings snapshot, keeping first")
			continue
		}

		row := &domain.LiveRow{}
		if existing, ok := s.rows[h.Key]; ok {
			row.LiveFields = existing.LiveFields
		}
		row.Key = h.Key
		row.Symbol = h.Symbol
		row.Quantity = h.Quantity
		row.AvgCost = h.AvgCost
		row.CostBasis = h.CostBasis
		row.RealizedPnL = h.RealizedPnL

		rows[h.Key] = row
		order = append(order, h.Key)
	}

	s.order = order
	s.rows = rows
	s.publishLocked()
}

// MergeLive replaces the live fields of key. It reports false and changes
// nothing when key is not present.
func (s *Store) MergeLive(key int64, fields domain.LiveFields) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok {
		return false
	}
	row.LiveFields = fields
	s.publishLocked()
	return true
}

// ApplyQuote derives live fields for key from q using the row's current static
// fields and merges them. It is a no-op returning false when key is gone or
// now belongs to a different symbol.
func (s *Store) ApplyQuote(key int64, symbol string, q domain.Quote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok || row.Symbol != symbol {
		return false
	}
	row.LiveFields = Derive(row.Holding(), q, row.PrevClose)
	s.publishLocked()
	return true
}

func (s *Store) snapshotLocked() []domain.LiveRow {
	out := make([]domain.LiveRow, len(s.order))
	for i, key := range s.order {
		out[i] = *s.rows[key]
	}
	return out
}

// publishLocked hands the current snapshot to every observer, replacing any
// value the observer has not read yet. Only publishLocked sends, and it runs
// under s.mu, so the send after draining never blocks.
func (s *Store) publishLocked() {
	if len(s.observers) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, ch := range s.observers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
