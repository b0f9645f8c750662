package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(configuration.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, testPolicy(), p)

	invalid := []configuration.RetryConfig{
		{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: time.Second},
		{MaxAttempts: 3, BaseDelay: 0, MaxDelay: time.Second},
		{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: time.Second},
	}
	for i, cfg := range invalid {
		t.Run(fmt.Sprintf("invalid_%d", i), func(t *testing.T) {
			_, err := NewPolicy(cfg)
			require.Error(t, err)
			assert.Equal(t, llmerrors.KindConfigurationInvalid, llmerrors.KindOf(err))
		})
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{60, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_BackoffJitterBounds(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Jitter: true}
	for range 200 {
		d := p.Backoff(3)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}

func TestPolicy_Step(t *testing.T) {
	transient := &llmerrors.ProviderError{Provider: "test", StatusCode: 503, Message: "unavailable"}
	fatal := &llmerrors.ProviderError{Provider: "test", StatusCode: 401, Message: "bad key"}

	tests := []struct {
		name      string
		attempt   int
		err       error
		wantPhase Phase
		wantDelay time.Duration
	}{
		{name: "success", err: nil, wantPhase: PhaseSucceeded},
		{name: "transient first failure", err: transient, wantPhase: PhaseBackingOff, wantDelay: time.Second},
		{name: "transient second failure", attempt: 1, err: transient, wantPhase: PhaseBackingOff, wantDelay: 2 * time.Second},
		{name: "transient on last attempt", attempt: 2, err: transient, wantPhase: PhaseExhausted},
		{name: "auth failure", err: fatal, wantPhase: PhaseFatal},
		{name: "admission denial", err: &llmerrors.AdmissionError{Model: "gpt-5", Multiplier: 1}, wantPhase: PhaseFatal},
		{name: "attempt timeout", err: llmerrors.Wrap(llmerrors.KindTimeout, "m", 0, context.DeadlineExceeded), wantPhase: PhaseBackingOff, wantDelay: time.Second},
		{name: "cancelled", err: context.Canceled, wantPhase: PhaseCancelled},
	}

	p := testPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := p.Step(State{Phase: PhaseAttempting, Attempt: tt.attempt}, tt.err)
			assert.Equal(t, tt.wantPhase, s.Phase)
			assert.Equal(t, tt.attempt+1, s.Attempt)
			assert.Equal(t, tt.wantDelay, s.NextDelay)
			assert.Equal(t, tt.err, s.LastErr)
		})
	}
}

func TestPolicy_StepHonorsRetryAfter(t *testing.T) {
	p := testPolicy()

	hinted := &llmerrors.ProviderError{StatusCode: 429, RetryAfter: 5 * time.Second}
	s := p.Step(p.Start(), hinted)
	assert.Equal(t, 5*time.Second, s.NextDelay)

	capped := &llmerrors.ProviderError{StatusCode: 429, RetryAfter: time.Hour}
	s = p.Step(p.Start(), capped)
	assert.Equal(t, p.MaxDelay, s.NextDelay)

	short := &llmerrors.ProviderError{StatusCode: 429, RetryAfter: time.Millisecond}
	s = p.Step(p.Start(), short)
	assert.Equal(t, time.Second, s.NextDelay)
}

func TestState_Resume(t *testing.T) {
	p := testPolicy()
	s := p.Step(p.Start(), errors.New("connection reset by peer"))
	require.Equal(t, PhaseBackingOff, s.Phase)

	s = s.Resume()
	assert.Equal(t, PhaseAttempting, s.Phase)
	assert.Zero(t, s.NextDelay)
	assert.Equal(t, 1, s.Attempt)

	done := State{Phase: PhaseSucceeded, Attempt: 1}
	assert.Equal(t, done, done.Resume())
}

func TestPhase_Terminal(t *testing.T) {
	assert.False(t, PhaseAttempting.Terminal())
	assert.False(t, PhaseBackingOff.Terminal())
	for _, p := range []Phase{PhaseSucceeded, PhaseFatal, PhaseExhausted, PhaseCancelled} {
		assert.True(t, p.Terminal(), p.String())
	}
}
