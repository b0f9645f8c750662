package llm

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/transport"
	"github.com/ahrav/go-conclave/internal/metrics"
)

const metadataRequestID = "request_id"

// loggingMiddleware logs the start and end of every invocation. Prompts are
// logged by length only.
func loggingMiddleware(logger *slog.Logger) transport.Middleware {
	logger = logger.With("component", "invocation")
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			fields := []any{
				"request_id", req.Metadata[metadataRequestID],
				"model", req.Model,
				"max_tokens", req.MaxTokens,
				"temperature", req.Temperature,
				"timeout_seconds", req.Timeout.Seconds(),
				"prompt_length", len(req.Prompt),
			}
			for k, v := range req.Metadata {
				if k != metadataRequestID {
					fields = append(fields, k, v)
				}
			}
			logger.Debug("invocation started", fields...)

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			fields = append(fields, "duration_ms", time.Since(start).Milliseconds())

			if err != nil {
				var attempts int
				var invErr *llmerrors.InvocationError
				if errors.As(err, &invErr) {
					attempts = invErr.Attempts
				}
				fields = append(fields,
					"error_kind", string(llmerrors.KindOf(err)),
					"attempts", attempts,
					"error", err.Error())
				logger.Error("invocation failed", fields...)
				return resp, err
			}

			logger.Info("invocation completed", append(fields,
				"attempts", resp.Attempts,
				"finish_reason", resp.FinishReason,
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens,
				"total_tokens", resp.Usage.TotalTokens,
				"response_length", len(resp.Text))...)
			return resp, nil
		})
	}
}

// metricsMiddleware records invocation outcomes on c.
func metricsMiddleware(c *metrics.Collector) transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		if c == nil {
			return next
		}
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			start := time.Now()
			resp, err := next.Handle(ctx, req)
			d := time.Since(start)

			if err != nil {
				var usage transport.Usage
				for _, u := range attemptLogFrom(ctx).snapshot() {
					usage.Add(u)
				}
				c.RecordInvocation(req.Model, string(llmerrors.KindOf(err)), d, 0, usage.PromptTokens, usage.CompletionTokens)
				return resp, err
			}

			c.RecordInvocation(req.Model, metrics.OutcomeSuccess, d, resp.Attempts, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			if !resp.AdmittedAt.IsZero() {
				c.RecordDispatchWait(req.Model, max(resp.AdmittedAt.Sub(start), 0))
			}
			return resp, nil
		})
	}
}

// attemptLog collects per-attempt usage for one Invoke so that billed usage
// survives a failed call.
type attemptLog struct {
	mu    sync.Mutex
	usage []transport.Usage
}

func (l *attemptLog) add(u transport.Usage) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.usage = append(l.usage, u)
	l.mu.Unlock()
}

func (l *attemptLog) snapshot() []transport.Usage {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.usage)
}

type attemptLogKey struct{}

func withAttemptLog(ctx context.Context, l *attemptLog) context.Context {
	return context.WithValue(ctx, attemptLogKey{}, l)
}

func attemptLogFrom(ctx context.Context) *attemptLog {
	l, _ := ctx.Value(attemptLogKey{}).(*attemptLog)
	return l
}

// attemptRecorder sits directly above the provider and logs the usage of
// every attempt that returned a response.
func attemptRecorder() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			resp, err := next.Handle(ctx, req)
			if resp != nil {
				attemptLogFrom(ctx).add(resp.Usage)
			}
			return resp, err
		})
	}
}
