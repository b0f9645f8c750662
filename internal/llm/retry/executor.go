// Package retry wraps a single provider invocation with bounded retries and
// exponential backoff.
//
// The retry loop is an explicit state machine (see State and Policy.Step):
// each attempt's error is classified into success, a fatal failure, exhaustion
// of the attempt budget, cancellation, or a backoff before the next attempt.
// Sleeping goes through an injected clock so tests observe the delays without
// waiting for them.
package retry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-conclave/internal/clock"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

// Executor runs attempts under a Policy.
type Executor struct {
	policy Policy
	clock  clock.Clock
	pace   func(context.Context) error
	logger *slog.Logger
	stats  *retryStats
}

// ExecutorOption customizes NewExecutor.
type ExecutorOption func(*Executor)

// WithPacer runs pace after each backoff and before the retry attempt it
// precedes. An error from pace ends the call with that error's kind.
func WithPacer(pace func(context.Context) error) ExecutorOption {
	return func(e *Executor) { e.pace = pace }
}

// NewExecutor creates an Executor. A nil clock selects the real clock.
func NewExecutor(policy Policy, clk clock.Clock, opts ...ExecutorOption) *Executor {
	if clk == nil {
		clk = clock.Real()
	}
	e := &Executor{
		policy: policy,
		clock:  clk,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do issues req through next until it succeeds, fails fatally, or the policy
// runs out of attempts.
//
// On success the response carries the attempt count and the usage of every
// attempt that returned one, summed into Usage. On failure the error is an
// *llmerrors.InvocationError whose Attempts field counts provider calls made;
// exhaustion is reported as KindProviderError wrapping the last failure.
func (e *Executor) Do(ctx context.Context, req *transport.Request, next transport.Handler) (*transport.Response, error) {
	var attemptUsage []transport.Usage
	s := e.policy.Start()

	for {
		if err := ctx.Err(); err != nil {
			e.stats.cancelled.Add(1)
			return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, req.Model, s.Attempt, err)
		}

		resp, err := next.Handle(ctx, req)
		e.stats.attempts.Add(1)
		if resp != nil {
			attemptUsage = append(attemptUsage, resp.Usage)
		}

		s = e.policy.Step(s, err)
		switch s.Phase {
		case PhaseSucceeded:
			e.recordSuccess(s, req)
			resp.Attempts = s.Attempt
			resp.AttemptUsage = attemptUsage
			resp.Usage = sumUsage(attemptUsage)
			return resp, nil

		case PhaseCancelled:
			e.stats.cancelled.Add(1)
			return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, req.Model, s.Attempt, err)

		case PhaseFatal:
			e.stats.fatal.Add(1)
			e.logger.Debug("non-retryable error", "error", err, "attempt", s.Attempt, "model", req.Model)
			return nil, llmerrors.Wrap(llmerrors.KindOf(err), req.Model, s.Attempt, err)

		case PhaseExhausted:
			e.stats.exhausted.Add(1)
			e.logger.Warn("retries exhausted", "attempts", s.Attempt, "model", req.Model, "last_error", err)
			return nil, llmerrors.Wrap(llmerrors.KindProviderError, req.Model, s.Attempt,
				fmt.Errorf("%d attempts exhausted: %w", s.Attempt, err))

		case PhaseBackingOff:
			e.stats.recordBackoff(s.NextDelay)
			e.logger.Info("retrying after transient failure",
				"attempt", s.Attempt,
				"delay", s.NextDelay,
				"model", req.Model,
				"error", err)
			select {
			case <-e.clock.After(s.NextDelay):
				if e.pace != nil {
					if err := e.pace(ctx); err != nil {
						if llmerrors.KindOf(err) == llmerrors.KindCancellationRequested {
							e.stats.cancelled.Add(1)
						}
						return nil, llmerrors.Wrap(llmerrors.KindOf(err), req.Model, s.Attempt, err)
					}
				}
				s = s.Resume()
			case <-ctx.Done():
				e.stats.cancelled.Add(1)
				return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, req.Model, s.Attempt, ctx.Err())
			}
		}
	}
}

func (e *Executor) recordSuccess(s State, req *transport.Request) {
	if s.Attempt > 1 {
		e.stats.successfulRetries.Add(1)
		e.logger.Info("request succeeded after retry", "attempt", s.Attempt, "model", req.Model)
		return
	}
	e.stats.successfulFirstAttempts.Add(1)
}

// Stats returns a snapshot of the executor's counters.
func (e *Executor) Stats() Stats { return e.stats.snapshot() }

// Middleware adapts the Executor to the transport pipeline.
func (e *Executor) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			return e.Do(ctx, req, next)
		})
	}
}

func sumUsage(us []transport.Usage) transport.Usage {
	var total transport.Usage
	for _, u := range us {
		total.Add(u)
	}
	return total
}
