package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-conclave/internal/clock"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// Redis connection settings for the dispatch gate.
const (
	RedisReadTimeout  = 5 * time.Second
	RedisWriteTimeout = 5 * time.Second
	RedisPoolSize     = 10
)

// acquireScript claims the dispatch slot for one interval. It returns
// {1, 0} when the slot was free and {0, pttl} otherwise.
var acquireScript = redis.NewScript(`
	local key = KEYS[1]
	local interval = tonumber(ARGV[1])

	if redis.call('SET', key, ARGV[2], 'NX', 'PX', interval) then
		return {1, 0}
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		-- Key without expiry should never exist; restore the interval.
		redis.call('PEXPIRE', key, interval)
		ttl = interval
	end
	return {0, ttl}
`)

// DispatchGate extends the interval limit across processes that share one
// endpoint. Each dispatch claims a Redis key that expires after the interval.
type DispatchGate struct {
	client   redis.UniversalClient
	key      string
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	degraded atomic.Bool
}

// NewRedisClient builds the client used by the gate.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  RedisReadTimeout,
		WriteTimeout: RedisWriteTimeout,
		PoolSize:     RedisPoolSize,
	})
}

// NewDispatchGate creates a gate for endpoint under keyPrefix.
func NewDispatchGate(
	client redis.UniversalClient,
	keyPrefix, endpoint string,
	interval time.Duration,
	clk clock.Clock,
) *DispatchGate {
	if clk == nil {
		clk = clock.Real()
	}
	return &DispatchGate{
		client:   client,
		key:      fmt.Sprintf("%s:%s", keyPrefix, endpoint),
		interval: interval,
		clock:    clk,
		logger:   slog.Default().With("component", "dispatch_gate", "endpoint", endpoint),
	}
}

// Acquire claims the shared dispatch slot. With wait set it sleeps until the
// slot frees; otherwise it returns a global RateLimitError. Redis failures
// switch the gate into degraded mode and let the call through, leaving the
// local IntervalLimiter as the only throttle.
func (g *DispatchGate) Acquire(ctx context.Context, wait bool) error {
	if g.interval <= 0 {
		return nil
	}

	for {
		token := g.clock.Now().UnixNano()
		res, err := acquireScript.Run(ctx, g.client, []string{g.key}, g.interval.Milliseconds(), token).Int64Slice()
		if err != nil {
			if ctx.Err() != nil {
				return llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, ctx.Err())
			}
			if !g.degraded.Swap(true) {
				g.logger.Warn("redis unavailable, falling back to local-only limiting", "error", err)
			}
			return nil
		}
		if g.degraded.Swap(false) {
			g.logger.Info("redis dispatch gate recovered")
		}

		if len(res) == 2 && res[0] == 1 {
			return nil
		}

		var ttl time.Duration
		if len(res) == 2 {
			ttl = time.Duration(res[1]) * time.Millisecond
		}
		if ttl <= 0 {
			ttl = time.Millisecond
		}
		if !wait {
			return &llmerrors.RateLimitError{Endpoint: g.key, RetryAfter: ttl, Global: true}
		}

		select {
		case <-g.clock.After(ttl):
		case <-ctx.Done():
			return llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, ctx.Err())
		}
	}
}

// Degraded reports whether the last Redis call failed.
func (g *DispatchGate) Degraded() bool { return g.degraded.Load() }
