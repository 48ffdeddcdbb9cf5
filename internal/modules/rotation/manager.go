package rotation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultScreens are the screens a manager serves when none are configured
var DefaultScreens = []string{"portfolio", "details"}

// ErrUnknownScreen is returned for a screen the manager was not created with
var ErrUnknownScreen = errors.New("unknown screen")

// Manager owns one Scheduler per screen. Every scheduler shares the same
// limiter and provider, so the call ceiling holds across all screens.
// The screen set is fixed at construction.
type Manager struct {
	ctx  context.Context
	deps Deps

	mu         sync.Mutex
	schedulers map[string]*Scheduler
}

// NewManager creates a manager for screens (DefaultScreens when empty) whose
// sessions live under ctx. Cancelling ctx ends every session.
func NewManager(ctx context.Context, deps Deps, screens ...string) *Manager {
	if len(screens) == 0 {
		screens = DefaultScreens
	}

	m := &Manager{
		ctx:        ctx,
		deps:       deps,
		schedulers: make(map[string]*Scheduler, len(screens)),
	}
	for _, screen := range screens {
		screen = strings.TrimSpace(screen)
		if screen == "" {
			continue
		}
		if _, ok := m.schedulers[screen]; !ok {
			m.schedulers[screen] = NewScheduler(screen, deps)
		}
	}
	return m
}

// Lookup returns the scheduler for screen if one exists
func (m *Manager) Lookup(screen string) (*Scheduler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sched, ok := m.schedulers[screen]
	return sched, ok
}

// Start (re)starts the session of screen
func (m *Manager) Start(screen, sessionKey string, target Target) (*Scheduler, error) {
	sched, ok := m.Lookup(screen)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScreen, screen)
	}
	if err := sched.Start(m.ctx, sessionKey, target); err != nil {
		return nil, err
	}
	return sched, nil
}

// Stop stops the session of screen, if any
func (m *Manager) Stop(screen string) {
	if sched, ok := m.Lookup(screen); ok {
		sched.Stop()
	}
}

// StopAll stops every session and waits for their loops to exit
func (m *Manager) StopAll() {
	m.mu.Lock()
	scheds := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		scheds = append(scheds, s)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range scheds {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}

// Statuses returns the status of every known screen, sorted by screen id
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	scheds := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		scheds = append(scheds, s)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(scheds))
	for _, s := range scheds {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Screen < out[j].Screen })
	return out
}

// Running returns how many screens have an active session
func (m *Manager) Running() int {
	n := 0
	for _, st := range m.Statuses() {
		if st.State == StateRunning {
			n++
		}
	}
	return n
}
