package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPremiumModelCache_Stale(t *testing.T) {
	c := PremiumModelCache{FetchedAt: epoch, TTL: 24 * time.Hour}

	assert.False(t, c.Stale(epoch))
	assert.False(t, c.Stale(epoch.Add(24*time.Hour-time.Nanosecond)))
	assert.True(t, c.Stale(epoch.Add(24*time.Hour)))

	assert.True(t, PremiumModelCache{TTL: time.Hour}.Stale(epoch), "zero fetch time")
	assert.True(t, PremiumModelCache{FetchedAt: epoch}.Stale(epoch), "zero ttl")
}

func TestPremiumModelCache_Lookup(t *testing.T) {
	c := FallbackTable()

	m, ok := c.Multiplier("  Claude-Opus-4.1 ")
	assert.True(t, ok)
	assert.InDelta(t, 10.0, m, 1e-9)
	assert.True(t, c.IsPremium("gpt-5"))

	m, ok = c.Multiplier("gpt-4.1")
	assert.True(t, ok, "explicitly free models are known")
	assert.Zero(t, m)
	assert.False(t, c.IsPremium("gpt-4.1"))

	_, ok = c.Multiplier("gpt-3.5-turbo")
	assert.False(t, ok)
	assert.False(t, c.IsPremium("gpt-3.5-turbo"), "unknown models are free")
}

func TestPremiumModelCache_Listings(t *testing.T) {
	c := FallbackTable()
	assert.Equal(t, []string{"gpt-4.1", "gpt-4o", "gpt-5-mini"}, c.FreeModels())

	premium := c.PremiumModels()
	assert.Len(t, premium, 9)
	assert.InDelta(t, 0.25, premium["grok-code-fast-1"], 1e-9)

	premium["gpt-5"] = 99
	assert.InDelta(t, 1.0, c.Multipliers["gpt-5"], 1e-9, "listing is a copy")
}

func TestFallbackTable_ReturnsIndependentCopies(t *testing.T) {
	a := FallbackTable()
	a.Multipliers["gpt-5"] = 0
	assert.True(t, FallbackTable().IsPremium("gpt-5"))
	assert.Equal(t, SourceFallback, a.Source)
	assert.True(t, a.FetchedAt.IsZero())
}
