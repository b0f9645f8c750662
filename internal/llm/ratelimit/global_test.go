package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/clock"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// redisClock advances miniredis together with the fake clock so key expiry
// follows simulated time.
type redisClock struct {
	*clock.Fake
	mr *miniredis.Miniredis
}

func (c redisClock) After(d time.Duration) <-chan time.Time {
	c.mr.FastForward(d)
	return c.Fake.After(d)
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDispatchGate_RejectsWhileSlotHeld(t *testing.T) {
	mr, client := setupMiniredis(t)
	gate := NewDispatchGate(client, "test", "proxy", 30*time.Second, clock.NewFake(epoch))

	require.NoError(t, gate.Acquire(context.Background(), false))

	err := gate.Acquire(context.Background(), false)
	require.Error(t, err)
	var rlErr *llmerrors.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.True(t, rlErr.Global)
	assert.Greater(t, rlErr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rlErr.RetryAfter, 30*time.Second)

	mr.FastForward(30 * time.Second)
	assert.NoError(t, gate.Acquire(context.Background(), false))
}

func TestDispatchGate_WaitModeSleepsUntilSlotFrees(t *testing.T) {
	mr, client := setupMiniredis(t)
	clk := redisClock{Fake: clock.NewFake(epoch), mr: mr}

	// A second process holds the slot.
	other := NewDispatchGate(client, "test", "proxy", 30*time.Second, clk)
	require.NoError(t, other.Acquire(context.Background(), true))

	gate := NewDispatchGate(client, "test", "proxy", 30*time.Second, clk)
	require.NoError(t, gate.Acquire(context.Background(), true))

	sleeps := clk.Sleeps()
	require.NotEmpty(t, sleeps)
	var total time.Duration
	for _, s := range sleeps {
		total += s
	}
	assert.Equal(t, 30*time.Second, total)
}

func TestDispatchGate_DegradesWhenRedisDown(t *testing.T) {
	mr, client := setupMiniredis(t)
	gate := NewDispatchGate(client, "test", "proxy", 30*time.Second, clock.NewFake(epoch))

	mr.Close()
	assert.NoError(t, gate.Acquire(context.Background(), false))
	assert.True(t, gate.Degraded())
}

func TestDispatchGate_ZeroIntervalDisabled(t *testing.T) {
	_, client := setupMiniredis(t)
	gate := NewDispatchGate(client, "test", "proxy", 0, clock.NewFake(epoch))

	for range 3 {
		require.NoError(t, gate.Acquire(context.Background(), false))
	}
}
