// Package admission decides whether a model may be invoked without an
// explicit premium opt-in.
//
// The authoritative list of premium models and their request multipliers is
// published in the GitHub Copilot billing documentation. The Gate keeps a
// time-bounded copy of that table (PremiumModelCache), refreshes it at most
// once at a time when it goes stale, persists it to a Store so restarts do
// not hit the docs, and falls back to a built-in table when nothing better is
// available.
package admission

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// SourceKind records where a cache snapshot came from.
type SourceKind string

// Cache origins.
const (
	SourceDocs     SourceKind = "docs"
	SourceFallback SourceKind = "fallback"
	SourceStore    SourceKind = "store"
)

// PremiumModelCache is an immutable snapshot of the premium table.
// A multiplier of 0 marks a model as explicitly free.
type PremiumModelCache struct {
	Multipliers map[string]float64 `json:"multipliers"`
	FetchedAt   time.Time          `json:"fetched_at"`
	TTL         time.Duration      `json:"ttl"`
	Source      SourceKind         `json:"source"`
	ContentHash string             `json:"content_hash,omitempty"`
}

// Stale reports whether the snapshot has outlived its TTL. A snapshot with no
// fetch time is always stale.
func (c PremiumModelCache) Stale(now time.Time) bool {
	if c.FetchedAt.IsZero() || c.TTL <= 0 {
		return true
	}
	return !now.Before(c.FetchedAt.Add(c.TTL))
}

// Multiplier returns the request multiplier for model and whether the model
// appears in the table at all.
func (c PremiumModelCache) Multiplier(model string) (float64, bool) {
	m, ok := c.Multipliers[NormalizeModelID(model)]
	return m, ok
}

// IsPremium reports whether model consumes premium requests. Models missing
// from the table are treated as free.
func (c PremiumModelCache) IsPremium(model string) bool {
	m, _ := c.Multiplier(model)
	return m > 0
}

// PremiumModels returns a copy of every premium entry.
func (c PremiumModelCache) PremiumModels() map[string]float64 {
	out := make(map[string]float64)
	for id, m := range c.Multipliers {
		if m > 0 {
			out[id] = m
		}
	}
	return out
}

// FreeModels returns the explicitly free model IDs, sorted.
func (c PremiumModelCache) FreeModels() []string {
	var out []string
	for id, m := range c.Multipliers {
		if m == 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// clone returns a copy whose map is not shared with c.
func (c PremiumModelCache) clone() PremiumModelCache {
	c.Multipliers = maps.Clone(c.Multipliers)
	return c
}

// NormalizeModelID lower-cases and trims a model identifier.
func NormalizeModelID(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
