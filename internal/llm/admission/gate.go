package admission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-conclave/internal/clock"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// CacheStatus tells how a lookup was served.
type CacheStatus int

// Cache statuses. StaleServed means a refresh was due but failed or was
// throttled, and the previous snapshot answered instead.
const (
	StatusFresh CacheStatus = iota
	StatusStaleServed
	StatusColdMiss
)

func (s CacheStatus) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStaleServed:
		return "stale_served"
	case StatusColdMiss:
		return "cold_miss"
	default:
		return "unknown"
	}
}

// Lookup is the gate's answer for one model.
type Lookup struct {
	Model      string
	Multiplier float64
	Premium    bool
	// Known is false for models absent from the table; those are free.
	Known  bool
	Status CacheStatus
	Source SourceKind
}

// Stats is a snapshot of gate activity.
type Stats struct {
	Allowed         int64 `json:"allowed"`
	Denied          int64 `json:"denied"`
	Refreshes       int64 `json:"refreshes"`
	RefreshFailures int64 `json:"refresh_failures"`
	StaleServed     int64 `json:"stale_served"`
	ColdMisses      int64 `json:"cold_misses"`
}

type gateStats struct {
	allowed, denied, refreshes, refreshFailures, staleServed, coldMisses atomic.Int64
}

const coldLoadKey = "cold"

// Gate admits or denies models against the premium table.
//
// Readers share the current snapshot under a read lock. Refreshes run through
// a singleflight group so concurrent callers finding a stale snapshot trigger
// one fetch; failed refreshes are retried no more than once per refresh
// backoff.
type Gate struct {
	source       Source
	store        Store
	clock        clock.Clock
	ttl          time.Duration
	allowPremium bool
	logger       *slog.Logger

	mu             sync.RWMutex
	cache          *PremiumModelCache
	lastRefreshErr error

	group    singleflight.Group
	throttle *rate.Limiter
	stats    gateStats
}

// NewGate creates a Gate. A nil store disables persistence and a nil clock
// selects the real clock.
func NewGate(cfg configuration.AdmissionConfig, source Source, store Store, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.Real()
	}
	if source == nil {
		source = FallbackSource{}
	}
	limit := rate.Inf
	if cfg.RefreshBackoff > 0 {
		limit = rate.Every(cfg.RefreshBackoff)
	}
	return &Gate{
		source:       source,
		store:        store,
		clock:        clk,
		ttl:          cfg.CacheTTL,
		allowPremium: cfg.AllowPremium,
		logger:       slog.Default().With("component", "admission", "source", source.Name()),
		throttle:     rate.NewLimiter(limit, 1),
	}
}

// Check returns nil when model may be invoked. A premium model without optIn
// (or the process-wide allow flag) yields an *llmerrors.AdmissionError.
func (g *Gate) Check(ctx context.Context, model string, optIn bool) error {
	l, err := g.Lookup(ctx, model)
	if err != nil {
		return err
	}
	if l.Premium && !optIn && !g.allowPremium {
		g.stats.denied.Add(1)
		g.logger.Warn("premium model denied",
			"model", model,
			"multiplier", l.Multiplier,
			"cache_status", l.Status.String())
		return &llmerrors.AdmissionError{Model: model, Multiplier: l.Multiplier}
	}
	g.stats.allowed.Add(1)
	return nil
}

// Lookup classifies model against the current snapshot, loading or
// refreshing it first when needed.
func (g *Gate) Lookup(ctx context.Context, model string) (Lookup, error) {
	c, status, err := g.Snapshot(ctx)
	if err != nil {
		return Lookup{}, err
	}
	m, known := c.Multiplier(model)
	return Lookup{
		Model:      NormalizeModelID(model),
		Multiplier: m,
		Premium:    m > 0,
		Known:      known,
		Status:     status,
		Source:     c.Source,
	}, nil
}

// Snapshot returns the current table, loading it on first use and refreshing
// it when stale.
func (g *Gate) Snapshot(ctx context.Context) (PremiumModelCache, CacheStatus, error) {
	if err := ctx.Err(); err != nil {
		return PremiumModelCache{}, 0, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, err)
	}

	g.mu.RLock()
	current := g.cache
	g.mu.RUnlock()

	if current == nil {
		g.stats.coldMisses.Add(1)
		c, err := g.coldLoad(ctx)
		return c, StatusColdMiss, err
	}

	now := g.clock.Now()
	if !current.Stale(now) {
		return *current, StatusFresh, nil
	}

	if !g.throttle.AllowN(now, 1) {
		g.stats.staleServed.Add(1)
		return *current, StatusStaleServed, nil
	}

	fresh, err := g.refresh(ctx)
	if err != nil {
		g.stats.staleServed.Add(1)
		return *current, StatusStaleServed, nil
	}
	return fresh, StatusFresh, nil
}

// Refresh fetches the table from the source now, ignoring staleness and the
// refresh throttle.
func (g *Gate) Refresh(ctx context.Context) (PremiumModelCache, error) {
	return g.refresh(ctx)
}

// LastRefreshError returns the error of the most recent failed refresh, or
// nil after a successful one.
func (g *Gate) LastRefreshError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastRefreshErr
}

// Stats returns a snapshot of the gate's counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Allowed:         g.stats.allowed.Load(),
		Denied:          g.stats.denied.Load(),
		Refreshes:       g.stats.refreshes.Load(),
		RefreshFailures: g.stats.refreshFailures.Load(),
		StaleServed:     g.stats.staleServed.Load(),
		ColdMisses:      g.stats.coldMisses.Load(),
	}
}

// coldLoad seeds an empty gate: store first, then the source, then the
// built-in table. It never leaves the gate empty.
func (g *Gate) coldLoad(ctx context.Context) (PremiumModelCache, error) {
	v, err, _ := g.group.Do(coldLoadKey, func() (any, error) {
		g.mu.RLock()
		current := g.cache
		g.mu.RUnlock()
		if current != nil {
			return *current, nil
		}

		var stored *PremiumModelCache
		if g.store != nil {
			c, err := g.store.Load(ctx)
			switch {
			case err == nil:
				c.Source = SourceStore
				if !c.Stale(g.clock.Now()) {
					g.logger.Info("premium cache loaded from store", "models", len(c.Multipliers))
					g.install(c, nil)
					return c, nil
				}
				stored = &c
			case !errors.Is(err, ErrNotFound):
				g.logger.Warn("premium cache store unavailable", "error", err)
			}
		}

		g.throttle.AllowN(g.clock.Now(), 1)
		fresh, err := g.fetch(ctx)
		if err == nil {
			return fresh, nil
		}

		if stored != nil {
			g.logger.Warn("serving stale premium cache from store", "error", err, "fetched_at", stored.FetchedAt)
			g.install(*stored, err)
			return *stored, nil
		}

		g.logger.Warn("premium table unavailable, using built-in fallback", "error", err)
		fb := FallbackTable()
		g.install(fb, err)
		return fb, nil
	})
	if err != nil {
		return PremiumModelCache{}, err
	}
	return v.(PremiumModelCache), nil
}

// refresh fetches through the singleflight group so concurrent stale readers
// share one request.
func (g *Gate) refresh(ctx context.Context) (PremiumModelCache, error) {
	v, err, shared := g.group.Do(g.source.Name(), func() (any, error) {
		return g.fetch(ctx)
	})
	if shared {
		g.logger.Debug("joined in-flight premium refresh")
	}
	if err != nil {
		return PremiumModelCache{}, err
	}
	return v.(PremiumModelCache), nil
}

// fetch runs one source fetch and installs the result. Failures are recorded
// and leave the current snapshot untouched.
func (g *Gate) fetch(ctx context.Context) (PremiumModelCache, error) {
	g.stats.refreshes.Add(1)
	c, err := g.source.Fetch(ctx)
	if err != nil {
		g.stats.refreshFailures.Add(1)
		g.mu.Lock()
		g.lastRefreshErr = err
		g.mu.Unlock()
		g.logger.Warn("premium table refresh failed", "error", err)
		return PremiumModelCache{}, err
	}

	c.FetchedAt = g.clock.Now()
	c.TTL = g.ttl

	g.mu.RLock()
	unchanged := g.cache != nil && c.ContentHash != "" && g.cache.ContentHash == c.ContentHash
	g.mu.RUnlock()
	if unchanged {
		g.logger.Debug("premium table unchanged", "content_hash", c.ContentHash)
	} else {
		g.logger.Info("premium table refreshed",
			"premium", len(c.PremiumModels()),
			"free", len(c.FreeModels()),
			"content_hash", c.ContentHash)
	}

	g.install(c, nil)
	if g.store != nil && c.Source != SourceFallback {
		if err := g.store.Save(ctx, c); err != nil {
			g.logger.Warn("failed to persist premium cache", "error", err)
		}
	}
	return c, nil
}

func (g *Gate) install(c PremiumModelCache, refreshErr error) {
	c = c.clone()
	g.mu.Lock()
	g.cache = &c
	g.lastRefreshErr = refreshErr
	g.mu.Unlock()
}
