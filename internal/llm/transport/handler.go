// Package transport defines the request pipeline every provider call travels
// through: a Handler at the core and Middleware layered around it.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// ProviderAdapter translates between Request/Response and one provider's
// HTTP wire format.
type ProviderAdapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
	Name() string
}

// Handler processes one request.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler.
// The first middleware is outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs one HTTP round trip
// per call. The per-attempt deadline comes from AttemptTimeout upstream.
func NewHTTPHandler(client *http.Client, adapter ProviderAdapter) Handler {
	return &httpHandler{
		client:  client,
		adapter: adapter,
		logger:  slog.Default().With("component", "transport", "provider", adapter.Name()),
	}
}

type httpHandler struct {
	client  *http.Client
	adapter ProviderAdapter
	logger  *slog.Logger
}

// Handle implements Handler by making a single HTTP request.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := h.adapter.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, h.classifyDoError(ctx, req, err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			h.logger.Debug("closing response body", "error", closeErr)
		}
	}()

	resp, err := h.adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}
	resp.Usage.LatencyMs = latency.Milliseconds()
	return resp, nil
}

// classifyDoError separates a context that ended, which AttemptTimeout
// reclassifies when its own deadline fired, from a transport failure.
func (h *httpHandler) classifyDoError(ctx context.Context, req *Request, err error) error {
	if ctx.Err() != nil {
		return llmerrors.Wrap(llmerrors.KindCancellationRequested, req.Model, 0, ctx.Err())
	}
	return &llmerrors.ProviderError{
		Provider: h.adapter.Name(),
		Message:  err.Error(),
	}
}
