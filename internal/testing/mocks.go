package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/watchfolio/internal/domain"
)

// MockHoldingsSource is an in-memory HoldingsSource. Set pushes a new snapshot
// to every observer of that owner.
type MockHoldingsSource struct {
	mu        sync.Mutex
	snapshots map[string][]domain.Holding
	observers map[string]map[int]chan []domain.Holding
	nextID    int
	err       error
}

// NewMockHoldingsSource creates an empty source
func NewMockHoldingsSource() *MockHoldingsSource {
	return &MockHoldingsSource{
		snapshots: make(map[string][]domain.Holding),
		observers: make(map[string]map[int]chan []domain.Holding),
	}
}

// SetError makes subsequent Observe calls fail
func (m *MockHoldingsSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Set replaces owner's holdings and notifies observers
func (m *MockHoldingsSource) Set(ownerID string, holdings []domain.Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := append([]domain.Holding(nil), holdings...)
	m.snapshots[ownerID] = snap
	for _, ch := range m.observers[ownerID] {
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

// ObserverCount returns the number of live observers for owner
func (m *MockHoldingsSource) ObserverCount(ownerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers[ownerID])
}

// Observe implements domain.HoldingsSource
func (m *MockHoldingsSource) Observe(ctx context.Context, ownerID string) (<-chan []domain.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	ch := make(chan []domain.Holding, 1)
	ch <- append([]domain.Holding(nil), m.snapshots[ownerID]...)

	m.nextID++
	id := m.nextID
	if m.observers[ownerID] == nil {
		m.observers[ownerID] = make(map[int]chan []domain.Holding)
	}
	m.observers[ownerID][id] = ch

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.observers[ownerID], id)
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

// ProviderCall records one FetchQuote invocation
type ProviderCall struct {
	Symbol string
	At     time.Time
}

// MockQuoteProvider is a scriptable QuoteProvider that records calls
type MockQuoteProvider struct {
	mu       sync.Mutex
	quotes   map[string]domain.Quote
	errs     map[string]error
	profiles map[string]domain.Profile
	gates    map[string]chan struct{}
	calls    []ProviderCall
	profCall []string
}

// NewMockQuoteProvider creates a provider with no scripted responses
func NewMockQuoteProvider() *MockQuoteProvider {
	return &MockQuoteProvider{
		quotes:   make(map[string]domain.Quote),
		errs:     make(map[string]error),
		profiles: make(map[string]domain.Profile),
		gates:    make(map[string]chan struct{}),
	}
}

// SetQuote scripts a successful response for symbol and clears any error
func (m *MockQuoteProvider) SetQuote(symbol string, q domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.Symbol = symbol
	m.quotes[symbol] = q
	delete(m.errs, symbol)
}

// SetError scripts a failure for symbol
func (m *MockQuoteProvider) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// SetProfile scripts a profile for symbol
func (m *MockQuoteProvider) SetProfile(symbol string, p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[symbol] = p
}

// Block makes FetchQuote for symbol wait until the returned release func is
// called or the caller's context ends.
func (m *MockQuoteProvider) Block(symbol string) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gate := make(chan struct{})
	m.gates[symbol] = gate

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.gates, symbol)
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns the recorded FetchQuote calls in order
func (m *MockQuoteProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProviderCall(nil), m.calls...)
}

// CallSymbols returns the symbols of recorded FetchQuote calls in order
func (m *MockQuoteProvider) CallSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Symbol
	}
	return out
}

// CallCount returns how many times symbol was fetched
func (m *MockQuoteProvider) CallCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Symbol == symbol {
			n++
		}
	}
	return n
}

// ProfileCalls returns the symbols passed to FetchProfile
func (m *MockQuoteProvider) ProfileCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.profCall...)
}

// FetchQuote implements domain.QuoteProvider
func (m *MockQuoteProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{Symbol: symbol, At: time.Now()})
	gate := m.gates[symbol]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &q, nil
}

// FetchProfile implements domain.QuoteProvider
func (m *MockQuoteProvider) FetchProfile(ctx context.Context, symbol string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profCall = append(m.profCall, symbol)
	p, ok := m.profiles[symbol]
	if !ok {
		return nil, fmt.Errorf("no profile for %s", symbol)
	}
	return &p, nil
}
