package transport

import (
	"context"
	"errors"
	"fmt"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// AttemptTimeout bounds each call through next by req.Timeout. An attempt
// that runs past its deadline while the caller's context is still live fails
// with KindTimeout, which the retry executor treats as transient. A zero
// Timeout leaves the attempt unbounded.
func AttemptTimeout() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			if req.Timeout <= 0 {
				return next.Handle(ctx, req)
			}
			attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
			defer cancel()

			resp, err := next.Handle(attemptCtx, req)
			if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return resp, llmerrors.Wrap(llmerrors.KindTimeout, req.Model, 0,
					fmt.Errorf("attempt exceeded %s: %w", req.Timeout, context.DeadlineExceeded))
			}
			return resp, err
		})
	}
}
