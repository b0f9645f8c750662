package ratelimit

import (
	"context"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

// Middleware admits each request through limiter, then through gate when one
// is configured, before handing it on. The admission time is recorded on the
// response.
func Middleware(limiter *IntervalLimiter, gate *DispatchGate) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			admittedAt, err := limiter.Admit(ctx)
			if err != nil {
				return nil, err
			}
			if gate != nil {
				if err := gate.Acquire(ctx, limiter.Mode() == configuration.ModeWait); err != nil {
					return nil, err
				}
			}

			resp, err := next.Handle(ctx, req)
			if resp != nil {
				resp.AdmittedAt = admittedAt
			}
			return resp, err
		})
	}
}

// Pacer returns the hook the retry executor runs before every retry attempt.
// Each retry takes its own dispatch slot in wait mode, so backoff never lets
// a retry reach the endpoint sooner than the minimum interval allows.
func Pacer(limiter *IntervalLimiter, gate *DispatchGate) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := limiter.Wait(ctx); err != nil {
			return err
		}
		if gate != nil {
			return gate.Acquire(ctx, true)
		}
		return nil
	}
}
