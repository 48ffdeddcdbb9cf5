// Package ratelimit provides the process-wide gate that spaces outbound
// market data calls.
//
// Every caller claims the next free slot in arrival order. A slot is
// max(now, nextAllowedAt) and each claim pushes nextAllowedAt forward by
// one gap, so no two admitted calls start closer than 60s/maxPerMinute
// apart no matter how many goroutines share the limiter. A failed call
// still consumes its slot.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter is a single-token pacing gate. Share one instance per process.
type Limiter struct {
	limiter      *rate.Limiter
	gap          time.Duration
	maxPerMinute int
	log          zerolog.Logger

	waiting  atomic.Int64
	admitted atomic.Int64
	failed   atomic.Int64
}

// Stats is a point-in-time view of limiter activity.
type Stats struct {
	MaxPerMinute int           `json:"max_per_minute"`
	Gap          time.Duration `json:"gap_ns"`
	Waiting      int64         `json:"waiting"`
	Admitted     int64         `json:"admitted"`
	Failed       int64         `json:"failed"`
}

// New creates a limiter allowing at most maxPerMinute admissions per minute.
func New(maxPerMinute int, log zerolog.Logger) (*Limiter, error) {
	if maxPerMinute <= 0 {
		return nil, fmt.Errorf("max calls per minute must be positive, got %d", maxPerMinute)
	}

	gap := time.Minute / time.Duration(maxPerMinute)

	return &Limiter{
		// Burst 1: an idle limiter never banks more than the next slot.
		limiter:      rate.NewLimiter(rate.Every(gap), 1),
		gap:          gap,
		maxPerMinute: maxPerMinute,
		log:          log.With().Str("component", "rate_limiter").Logger(),
	}, nil
}

// Gap returns the minimum spacing between two admissions.
func (l *Limiter) Gap() time.Duration {
	return l.gap
}

// Wait blocks until the caller's slot arrives.
// It returns a context error if ctx ends first; the slot is then released.
func (l *Limiter) Wait(ctx context.Context) error {
	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The slot lies beyond ctx's deadline.
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}

	if waited := time.Since(start); waited > l.gap {
		l.log.Debug().
			Dur("waited", waited).
			Int64("queued", l.waiting.Load()-1).
			Msg("Admission delayed behind other callers")
	}

	return nil
}

// Stats returns current counters.
func (l *Limiter) Stats() Stats {
	return Stats{
		MaxPerMinute: l.maxPerMinute,
		Gap:          l.gap,
		Waiting:      l.waiting.Load(),
		Admitted:     l.admitted.Load(),
		Failed:       l.failed.Load(),
	}
}

// Admit waits for a slot and then runs action outside of any lock, returning
// its result. Action failures are returned unchanged and do not refund the slot.
// If ctx ends while waiting, action is never run and ctx's error is returned.
func Admit[T any](ctx context.Context, l *Limiter, action func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := l.Wait(ctx); err != nil {
		return zero, err
	}

	l.admitted.Add(1)
	result, err := action(ctx)
	if err != nil {
		l.failed.Add(1)
		return zero, err
	}

	return result, nil
}
