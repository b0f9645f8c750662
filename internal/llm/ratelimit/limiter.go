// Package ratelimit enforces a minimum interval between dispatches to one
// downstream endpoint.
//
// An IntervalLimiter is constructed explicitly for each endpoint and passed to
// the invocation layer that owns it; there is no package-level state. All
// admission decisions for an endpoint are taken under a single mutex, while
// the calls themselves, once admitted, run concurrently. The limiter throttles
// dispatch timing only, never response wait time.
//
// A DispatchGate can additionally share the interval with other processes
// through Redis. When Redis is unreachable the gate degrades to local-only
// limiting rather than failing calls.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ahrav/go-conclave/internal/clock"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// State is a snapshot of the limiter's mutable state and configuration.
type State struct {
	Endpoint     string
	LastDispatch time.Time
	MinInterval  time.Duration
	Mode         configuration.RateLimitMode
}

// IntervalLimiter admits at most one dispatch per MinInterval.
//
// In wait mode a caller that arrives early is assigned the next free slot,
// lastDispatch+MinInterval, and suspended until then. In reject mode it fails
// immediately with a RateLimitError. lastDispatch always records the admission
// time, not the completion time, so concurrent callers queue against one
// shared timeline.
type IntervalLimiter struct {
	endpoint    string
	minInterval time.Duration
	mode        configuration.RateLimitMode
	clock       clock.Clock
	logger      *slog.Logger
	stats       *stats

	mu           sync.Mutex
	lastDispatch time.Time
}

// NewIntervalLimiter creates a limiter for endpoint. A zero minInterval
// admits every call immediately.
func NewIntervalLimiter(
	endpoint string,
	minInterval time.Duration,
	mode configuration.RateLimitMode,
	clk clock.Clock,
) *IntervalLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	if mode == "" {
		mode = configuration.ModeWait
	}
	return &IntervalLimiter{
		endpoint:    endpoint,
		minInterval: minInterval,
		mode:        mode,
		clock:       clk,
		logger:      slog.Default().With("component", "ratelimit", "endpoint", endpoint),
		stats:       &stats{},
	}
}

// Admit blocks until the caller may dispatch and returns the admission time.
//
// Waiting is cancellable through ctx. A cancelled waiter releases its slot
// when no later caller has queued behind it, and the error is classified as
// CancellationRequested.
func (l *IntervalLimiter) Admit(ctx context.Context) (time.Time, error) {
	return l.admit(ctx, l.mode)
}

// Wait admits like Admit in wait mode, whatever the configured mode. The
// retry pacer uses it for every attempt after the first.
func (l *IntervalLimiter) Wait(ctx context.Context) (time.Time, error) {
	return l.admit(ctx, configuration.ModeWait)
}

func (l *IntervalLimiter) admit(ctx context.Context, mode configuration.RateLimitMode) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		l.stats.cancelled.Add(1)
		return time.Time{}, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, err)
	}

	l.mu.Lock()
	now := l.clock.Now()
	admitAt := now
	if l.minInterval > 0 && !l.lastDispatch.IsZero() {
		if next := l.lastDispatch.Add(l.minInterval); next.After(now) {
			if mode == configuration.ModeReject {
				l.mu.Unlock()
				l.stats.rejected.Add(1)
				return time.Time{}, &llmerrors.RateLimitError{
					Endpoint:   l.endpoint,
					RetryAfter: next.Sub(now),
				}
			}
			admitAt = next
		}
	}
	prev := l.lastDispatch
	l.lastDispatch = admitAt
	l.mu.Unlock()

	wait := admitAt.Sub(now)
	if wait <= 0 {
		l.stats.admitted.Add(1)
		return admitAt, nil
	}

	l.logger.Debug("waiting for dispatch slot", "wait", wait, "admit_at", admitAt)
	select {
	case <-l.clock.After(wait):
		l.stats.admitted.Add(1)
		l.stats.waited.Add(1)
		l.stats.waitNanos.Add(int64(wait))
		return admitAt, nil
	case <-ctx.Done():
		l.mu.Lock()
		if l.lastDispatch.Equal(admitAt) {
			l.lastDispatch = prev
		}
		l.mu.Unlock()
		l.stats.cancelled.Add(1)
		return time.Time{}, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, ctx.Err())
	}
}

// State returns a snapshot of the limiter.
func (l *IntervalLimiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Endpoint:     l.endpoint,
		LastDispatch: l.lastDispatch,
		MinInterval:  l.minInterval,
		Mode:         l.mode,
	}
}

// Mode returns the configured limiter mode.
func (l *IntervalLimiter) Mode() configuration.RateLimitMode { return l.mode }

// Stats returns a snapshot of admission counters.
func (l *IntervalLimiter) Stats() Stats { return l.stats.snapshot() }
