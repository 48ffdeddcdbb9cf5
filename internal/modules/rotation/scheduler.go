// Package rotation runs the per-screen refresh loops that cycle through a
// screen's instruments, fetching one gated quote per tick into live state.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/events"
	"github.com/aristath/watchfolio/internal/modules/livestate"
	"github.com/aristath/watchfolio/internal/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is a scheduler's lifecycle state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// DefaultEmptyBackoff is how long a loop sleeps when it has nothing to refresh
const DefaultEmptyBackoff = 500 * time.Millisecond

// Target selects what a session refreshes. An empty Symbol means the owner's
// whole portfolio; otherwise only that instrument (details mode).
type Target struct {
	OwnerID string `json:"owner_id"`
	Symbol  string `json:"symbol,omitempty"`
}

// DetailsMode reports whether the target is a single instrument
func (t Target) DetailsMode() bool {
	return t.Symbol != ""
}

// EventEmitter publishes typed events. The scheduler never emits while
// holding its own locks, so handlers may call back into it.
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// ProfileLoader resolves an instrument profile, consulting a cache before
// calling fetch.
type ProfileLoader interface {
	Load(ctx context.Context, symbol string, fetch func(context.Context) (*domain.Profile, error)) (*domain.Profile, error)
}

// Deps are the collaborators shared by every scheduler
type Deps struct {
	Holdings     domain.HoldingsSource
	Provider     domain.QuoteProvider
	Limiter      *ratelimit.Limiter
	Profiles     ProfileLoader // optional
	Events       EventEmitter  // optional
	EmptyBackoff time.Duration
	Log          zerolog.Logger
}

// Status describes a scheduler for status endpoints
type Status struct {
	Screen    string     `json:"screen"`
	State     State      `json:"state"`
	Session   string     `json:"session,omitempty"`
	Target    Target     `json:"target"`
	Rows      int        `json:"rows"`
	Ticks     int64      `json:"ticks"`
	Failures  int64      `json:"failures"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// session is one Start..Stop span. Its merge lock makes "cancelled" and
// "merged" mutually exclusive for every result of the session.
type session struct {
	key     string
	target  Target
	started time.Time

	mergeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// stop cancels the session. Once it returns no further merge can happen.
func (s *session) stop() {
	s.mergeMu.Lock()
	s.cancel()
	s.mergeMu.Unlock()
}

// finished reports whether the session's loop has exited
func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// merge runs fn only if the session is still live.
func (s *session) merge(fn func()) bool {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// Scheduler owns one screen's refresh loop and live state.
type Scheduler struct {
	screen string
	deps   Deps
	store  *livestate.Store
	log    zerolog.Logger

	// lifecycle serializes Start and Stop; the loop goroutines and the
	// read accessors never take it
	lifecycle sync.Mutex

	// mu guards everything below. state and current are written with both
	// locks held, so Start and Stop may read them under lifecycle alone.
	mu       sync.Mutex
	state    State
	current  *session
	rotation []domain.Holding
	cursor   uint64
	profile  *domain.Profile
	ticks    int64
	failures int64
}

// NewScheduler creates an idle scheduler for screen
func NewScheduler(screen string, deps Deps) *Scheduler {
	if deps.EmptyBackoff <= 0 {
		deps.EmptyBackoff = DefaultEmptyBackoff
	}

	log := deps.Log.With().Str("component", "rotation").Str("screen", screen).Logger()

	return &Scheduler{
		screen: screen,
		deps:   deps,
		store:  livestate.NewStore(log),
		log:    log,
		state:  StateIdle,
	}
}

// Screen returns the screen id
func (s *Scheduler) Screen() string {
	return s.screen
}

// Store returns the screen's live state
func (s *Scheduler) Store() *livestate.Store {
	return s.store
}

// State returns the lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// stateLocked also reports Stopped for a session ended by its parent context.
func (s *Scheduler) stateLocked() State {
	if s.state == StateRunning && s.current.finished() {
		return StateStopped
	}
	return s.state
}

// Session returns the current session key, empty when not running
func (s *Scheduler) Session() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateLocked() != StateRunning {
		return ""
	}
	return s.current.key
}

// Profile returns the instrument profile loaded in details mode, if any
func (s *Scheduler) Profile() *domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Status returns a snapshot of the scheduler
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{Screen: s.screen, State: s.stateLocked()}
	if s.current != nil {
		st.Target = s.current.target
		if st.State == StateRunning {
			st.Session = s.current.key
			started := s.current.started
			st.StartedAt = &started
		}
	}
	st.Ticks = s.ticks
	st.Failures = s.failures
	s.mu.Unlock()

	st.Rows = s.store.Len()
	return st
}

// Start begins a new session under parent. Any running session of this screen
// is cancelled and fully drained first, so at most one loop per screen exists.
func (s *Scheduler) Start(parent context.Context, sessionKey string, target Target) error {
	if target.OwnerID == "" {
		return errors.New("owner id is required")
	}
	target.Symbol = strings.TrimSpace(target.Symbol)

	s.lifecycle.Lock()
	pending, err := s.startLocked(parent, sessionKey, target)
	s.lifecycle.Unlock()

	// Emitted after unlocking: bus handlers run synchronously and may query
	// the scheduler.
	for _, data := range pending {
		s.emit(data)
	}
	return err
}

func (s *Scheduler) startLocked(parent context.Context, sessionKey string, target Target) ([]events.EventData, error) {
	var pending []events.EventData

	var previous Target
	hadPrevious := s.current != nil
	if hadPrevious {
		previous = s.current.target
	}
	if stopped := s.stopLocked(); stopped != nil {
		pending = append(pending, stopped)
	}

	ctx, cancel := context.WithCancel(parent)

	updates, err := s.deps.Holdings.Observe(ctx, target.OwnerID)
	if err != nil {
		cancel()
		return pending, fmt.Errorf("failed to observe holdings for %s: %w", target.OwnerID, err)
	}

	s.mu.Lock()
	s.rotation = nil
	s.profile = nil
	s.mu.Unlock()

	// Rows of a different target must not leak into this session.
	if !hadPrevious || previous != target {
		s.store.Reconcile(nil)
	}

	sess := &session{
		key:     sessionKey,
		target:  target,
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.mu.Lock()
	s.current = sess
	s.state = StateRunning
	s.mu.Unlock()

	go s.run(sess, updates)

	s.log.Info().
		Str("session", sessionKey).
		Str("owner", target.OwnerID).
		Str("symbol", target.Symbol).
		Msg("Refresh session started")

	return append(pending, &events.SessionData{
		Type:    events.SessionStarted,
		Screen:  s.screen,
		Session: sessionKey,
		OwnerID: target.OwnerID,
		Symbol:  target.Symbol,
	}), nil
}

// Stop cancels the running session and waits for its loop to exit.
// Results of in-flight fetches are discarded. Stop on an idle or stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	stopped := s.stopLocked()
	s.lifecycle.Unlock()

	if stopped != nil {
		s.emit(stopped)
	}
}

// stopLocked ends the running session and returns the event describing it,
// or nil when nothing was running. The caller emits it after unlocking.
func (s *Scheduler) stopLocked() *events.SessionData {
	if s.state != StateRunning || s.current == nil {
		return nil
	}

	sess := s.current
	sess.stop()
	<-sess.done

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.log.Info().Str("session", sess.key).Msg("Refresh session stopped")
	return &events.SessionData{
		Type:    events.SessionStopped,
		Screen:  s.screen,
		Session: sess.key,
		OwnerID: sess.target.OwnerID,
		Symbol:  sess.target.Symbol,
	}
}

func (s *Scheduler) run(sess *session, updates <-chan []domain.Holding) {
	defer close(sess.done)

	g, ctx := errgroup.WithContext(sess.ctx)
	g.Go(func() error {
		return s.reconcileLoop(ctx, sess, updates)
	})
	g.Go(func() error {
		return s.rotateLoop(ctx, sess)
	})
	if sess.target.DetailsMode() {
		g.Go(func() error {
			s.loadProfile(ctx, sess)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Str("session", sess.key).Msg("Refresh session failed")
	}
}

// reconcileLoop applies every holdings snapshot to the rotation set and the store.
func (s *Scheduler) reconcileLoop(ctx context.Context, sess *session, updates <-chan []domain.Holding) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case holdings, ok := <-updates:
			if !ok {
				// Source ended; keep rotating over the last known set.
				s.log.Debug().Msg("Holdings stream closed")
				return nil
			}

			set := rotationSet(sess.target, holdings)
			sess.merge(func() {
				s.mu.Lock()
				s.rotation = set
				s.mu.Unlock()
				s.store.Reconcile(set)
			})
			s.log.Debug().Int("instruments", len(set)).Msg("Holdings reconciled")
		}
	}
}

// rotationSet narrows a holdings snapshot to what target refreshes.
func rotationSet(target Target, holdings []domain.Holding) []domain.Holding {
	if !target.DetailsMode() {
		return holdings
	}

	var out []domain.Holding
	for _, h := range holdings {
		if strings.EqualFold(h.Symbol, target.Symbol) {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		// Not held: refresh a watch-only row.
		out = []domain.Holding{{Key: 0, OwnerID: target.OwnerID, Symbol: target.Symbol}}
	}
	return out
}

// rotateLoop performs one gated fetch per tick, round-robin over the current set.
func (s *Scheduler) rotateLoop(ctx context.Context, sess *session) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		h, ok := s.next()
		if !ok {
			backoff := time.NewTimer(s.deps.EmptyBackoff)
			select {
			case <-ctx.Done():
				backoff.Stop()
				return nil
			case <-backoff.C:
			}
			continue
		}

		s.tick(ctx, sess, h)
	}
}

// next picks the holding under the cursor and advances it. The cursor is
// never reset; its index is taken modulo the current set size, so a set that
// shrinks mid-cycle may skip or repeat one element once.
func (s *Scheduler) next() (domain.Holding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := uint64(len(s.rotation))
	if n == 0 {
		return domain.Holding{}, false
	}
	h := s.rotation[s.cursor%n]
	s.cursor++
	return h, true
}

func (s *Scheduler) tick(ctx context.Context, sess *session, h domain.Holding) {
	quote, err := ratelimit.Admit(ctx, s.deps.Limiter, func(ctx context.Context) (*domain.Quote, error) {
		return s.deps.Provider.FetchQuote(ctx, h.Symbol)
	})
	if ctx.Err() != nil {
		return
	}
	if err == nil && quote == nil {
		err = fmt.Errorf("empty quote for %s", h.Symbol)
	}

	s.mu.Lock()
	s.ticks++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Str("symbol", h.Symbol).Int64("key", h.Key).Msg("Quote fetch failed")
		s.emit(&events.QuoteFetchFailedData{
			Screen:  s.screen,
			Session: sess.key,
			Key:     h.Key,
			Symbol:  h.Symbol,
			Error:   err.Error(),
		})
		return
	}

	var applied bool
	live := sess.merge(func() {
		applied = s.store.ApplyQuote(h.Key, h.Symbol, *quote)
	})
	if !live {
		return
	}
	if !applied {
		s.log.Debug().Str("symbol", h.Symbol).Int64("key", h.Key).Msg("Quote dropped, row no longer present")
		return
	}

	s.log.Debug().Str("symbol", h.Symbol).Float64("price", quote.LastPrice).Msg("Quote applied")
	s.emit(&events.QuoteFetchedData{
		Screen:    s.screen,
		Session:   sess.key,
		Key:       h.Key,
		Symbol:    h.Symbol,
		LastPrice: quote.LastPrice,
	})
}

// loadProfile resolves the details instrument's profile once per session.
func (s *Scheduler) loadProfile(ctx context.Context, sess *session) {
	symbol := sess.target.Symbol
	fetch := func(ctx context.Context) (*domain.Profile, error) {
		return ratelimit.Admit(ctx, s.deps.Limiter, func(ctx context.Context) (*domain.Profile, error) {
			return s.deps.Provider.FetchProfile(ctx, symbol)
		})
	}

	var (
		profile *domain.Profile
		err     error
	)
	if s.deps.Profiles != nil {
		profile, err = s.deps.Profiles.Load(ctx, symbol, fetch)
	} else {
		profile, err = fetch(ctx)
	}
	if ctx.Err() != nil {
		return
	}
	if err == nil && profile == nil {
		err = fmt.Errorf("empty profile for %s", symbol)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Profile load failed")
		return
	}

	sess.merge(func() {
		s.mu.Lock()
		s.profile = profile
		s.mu.Unlock()
	})

	s.emit(&events.ProfileLoadedData{Screen: s.screen, Symbol: symbol, Name: profile.Name})
}

func (s *Scheduler) emit(data events.EventData) {
	if s.deps.Events != nil {
		s.deps.Events.EmitTyped("rotation", data)
	}
}
