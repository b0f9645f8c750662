package retry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/clock"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/transport"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// scripted returns a handler that replays errs in order and then succeeds.
func scripted(calls *atomic.Int32, errs ...error) transport.Handler {
	return transport.HandlerFunc(func(_ context.Context, req *transport.Request) (*transport.Response, error) {
		n := int(calls.Add(1))
		if n <= len(errs) {
			return nil, errs[n-1]
		}
		return &transport.Response{
			Text:  "ok",
			Model: req.Model,
			Usage: transport.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	})
}

func unavailable() error {
	return &llmerrors.ProviderError{Provider: "test", StatusCode: 503, Message: "service unavailable"}
}

func TestExecutor_SucceedsAfterTransientFailures(t *testing.T) {
	clk := clock.NewFake(epoch)
	exec := NewExecutor(testPolicy(), clk)

	var calls atomic.Int32
	resp, err := exec.Do(context.Background(), &transport.Request{Model: "gpt-4.1"}, scripted(&calls, unavailable(), unavailable()))
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())
	assert.GreaterOrEqual(t, clk.Now().Sub(epoch), 3*time.Second)

	stats := exec.Stats()
	assert.Equal(t, int64(3), stats.Attempts)
	assert.Equal(t, int64(1), stats.SuccessfulRetries)
	assert.Equal(t, int64(2), stats.Backoffs)
	assert.Equal(t, 2*time.Second, stats.MaxBackoff)
}

func TestExecutor_SumsUsageAcrossAttempts(t *testing.T) {
	exec := NewExecutor(testPolicy(), clock.NewFake(epoch))

	var calls atomic.Int32
	next := transport.HandlerFunc(func(_ context.Context, _ *transport.Request) (*transport.Response, error) {
		n := calls.Add(1)
		resp := &transport.Response{Text: "partial", Usage: transport.Usage{PromptTokens: 7, TotalTokens: 7}}
		if n == 1 {
			// A billed attempt that still failed.
			return resp, unavailable()
		}
		resp.Text = "ok"
		return resp, nil
	})

	resp, err := exec.Do(context.Background(), &transport.Request{Model: "m"}, next)
	require.NoError(t, err)
	require.Len(t, resp.AttemptUsage, 2)
	assert.Equal(t, int64(14), resp.Usage.PromptTokens)
	assert.Equal(t, int64(14), resp.Usage.TotalTokens)
}

func TestExecutor_FatalShortCircuits(t *testing.T) {
	clk := clock.NewFake(epoch)
	exec := NewExecutor(testPolicy(), clk)

	var calls atomic.Int32
	authErr := &llmerrors.ProviderError{Provider: "test", StatusCode: 401, Message: "invalid api key"}
	_, err := exec.Do(context.Background(), &transport.Request{Model: "m"}, scripted(&calls, authErr))
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, clk.Sleeps())
	assert.ErrorIs(t, err, llmerrors.ErrProviderError)
	assert.ErrorAs(t, err, &authErr)

	var invErr *llmerrors.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, 1, invErr.Attempts)
}

func TestExecutor_AdmissionDenialNotRetried(t *testing.T) {
	exec := NewExecutor(testPolicy(), clock.NewFake(epoch))

	var calls atomic.Int32
	_, err := exec.Do(context.Background(), &transport.Request{Model: "gpt-5"},
		scripted(&calls, &llmerrors.AdmissionError{Model: "gpt-5", Multiplier: 1}))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, err, llmerrors.ErrAdmissionDenied)
}

func TestExecutor_ExhaustionYieldsProviderError(t *testing.T) {
	clk := clock.NewFake(epoch)
	exec := NewExecutor(testPolicy(), clk)

	var calls atomic.Int32
	_, err := exec.Do(context.Background(), &transport.Request{Model: "m"},
		scripted(&calls, unavailable(), unavailable(), unavailable(), unavailable()))
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())

	var invErr *llmerrors.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, llmerrors.KindProviderError, invErr.Kind)
	assert.Equal(t, 3, invErr.Attempts)
	assert.Contains(t, invErr.Error(), "service unavailable")
	assert.Equal(t, int64(1), exec.Stats().Exhausted)
}

// blockingClock never fires, so a backoff can only end through cancellation.
type blockingClock struct{ clock.Clock }

func (blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestExecutor_CancelDuringBackoff(t *testing.T) {
	exec := NewExecutor(testPolicy(), blockingClock{clock.NewFake(epoch)})

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	next := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls.Add(1)
		cancel()
		return nil, unavailable()
	})

	_, err := exec.Do(ctx, &transport.Request{Model: "m"}, next)
	require.Error(t, err)
	assert.ErrorIs(t, err, llmerrors.ErrCancellationRequested)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_CancelledBeforeFirstAttempt(t *testing.T) {
	exec := NewExecutor(testPolicy(), clock.NewFake(epoch))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, err := exec.Do(ctx, &transport.Request{Model: "m"}, scripted(&calls))
	require.Error(t, err)
	assert.Equal(t, llmerrors.KindCancellationRequested, llmerrors.KindOf(err))
	assert.Zero(t, calls.Load())
}

func TestExecutor_Middleware(t *testing.T) {
	exec := NewExecutor(testPolicy(), clock.NewFake(epoch))

	var calls atomic.Int32
	h := transport.Chain(scripted(&calls, unavailable()), exec.Middleware())
	resp, err := h.Handle(context.Background(), &transport.Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
}

func TestExecutor_PacerRunsBeforeEachRetry(t *testing.T) {
	clk := clock.NewFake(epoch)
	var paced []time.Time
	exec := NewExecutor(testPolicy(), clk, WithPacer(func(context.Context) error {
		paced = append(paced, clk.Now())
		return nil
	}))

	var calls atomic.Int32
	resp, err := exec.Do(context.Background(), &transport.Request{Model: "m"}, scripted(&calls, unavailable(), unavailable()))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(3 * time.Second)}, paced, "paced after each backoff, never before the first attempt")
}

func TestExecutor_PacerErrorEndsCall(t *testing.T) {
	exec := NewExecutor(testPolicy(), clock.NewFake(epoch), WithPacer(func(context.Context) error {
		return llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, context.Canceled)
	}))

	var calls atomic.Int32
	_, err := exec.Do(context.Background(), &transport.Request{Model: "m"}, scripted(&calls, unavailable()))
	require.Error(t, err)

	var invErr *llmerrors.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, llmerrors.KindCancellationRequested, invErr.Kind)
	assert.Equal(t, 1, invErr.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}
