package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "invocation error", err: Wrap(KindEvaluationFailed, "", 0, errors.New("boom")), want: KindEvaluationFailed},
		{name: "wrapped invocation error", err: fmt.Errorf("outer: %w", New(KindTimeout, "slow")), want: KindTimeout},
		{name: "admission", err: &AdmissionError{Model: "gpt-5", Multiplier: 1}, want: KindAdmissionDenied},
		{name: "rate limit", err: &RateLimitError{Endpoint: "proxy"}, want: KindRateLimited},
		{name: "context canceled", err: context.Canceled, want: KindCancellationRequested},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "net timeout", err: timeoutNetErr{}, want: KindTimeout},
		{name: "config sentinel", err: fmt.Errorf("bad: %w", ErrConfigurationInvalid), want: KindConfigurationInvalid},
		{name: "provider", err: &ProviderError{Provider: "proxy", StatusCode: 500}, want: KindProviderError},
		{name: "untyped", err: errors.New("mystery"), want: KindProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "5xx", err: &ProviderError{StatusCode: http.StatusBadGateway}, want: true},
		{name: "429", err: &ProviderError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "408", err: &ProviderError{StatusCode: http.StatusRequestTimeout}, want: true},
		{name: "no response", err: &ProviderError{Message: "dial failed"}, want: true},
		{name: "401", err: &ProviderError{StatusCode: http.StatusUnauthorized}, want: false},
		{name: "400", err: &ProviderError{StatusCode: http.StatusBadRequest}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "admission", err: &AdmissionError{Model: "gpt-5", Multiplier: 1}, want: false},
		{name: "config", err: New(KindConfigurationInvalid, "bad weights"), want: false},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "unknown", err: errors.New("mystery"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestInvocationError_Is(t *testing.T) {
	cause := &ProviderError{Provider: "proxy", StatusCode: 503, Message: "down"}
	err := Wrap(KindProviderError, "gpt-4.1", 3, cause)

	assert.ErrorIs(t, err, ErrProviderError)
	assert.NotErrorIs(t, err, ErrTimeout)

	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Equal(t, 503, provErr.StatusCode)
	assert.Equal(t, 3, err.Attempts)
	assert.Contains(t, err.Error(), "gpt-4.1")
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &AdmissionError{Model: "m"}, ErrAdmissionDenied)
	assert.ErrorIs(t, &RateLimitError{Endpoint: "e"}, ErrRateLimited)
	for _, k := range []Kind{
		KindTimeout, KindRateLimited, KindAdmissionDenied, KindProviderError,
		KindCancellationRequested, KindEvaluationFailed, KindConfigurationInvalid,
	} {
		assert.NotNil(t, k.Sentinel(), "kind %s", k)
	}
}
