package admission

import (
	"context"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

// Middleware rejects premium models that were not opted into before any
// rate-limit slot or provider call is spent on them.
func Middleware(g *Gate) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := g.Check(ctx, req.Model, req.AllowPremium); err != nil {
				return nil, llmerrors.Wrap(llmerrors.KindOf(err), req.Model, 0, err)
			}
			return next.Handle(ctx, req)
		})
	}
}
