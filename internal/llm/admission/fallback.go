package admission

import (
	"context"
	"maps"
)

// fallbackMultipliers mirrors the Copilot billing table as last reviewed.
// It seeds the gate when neither the store nor the docs are reachable.
var fallbackMultipliers = map[string]float64{
	"gpt-5-mini": 0,
	"gpt-4.1":    0,
	"gpt-4o":     0,

	"claude-haiku-4.5":  0.33,
	"grok-code-fast-1":  0.25,
	"claude-3.5-sonnet": 1,
	"claude-sonnet-4":   1,
	"claude-sonnet-4.5": 1,
	"gemini-2.5-pro":    1,
	"gpt-5":             1,
	"gpt-5-codex":       1,
	"claude-opus-4.1":   10,
}

// FallbackSource serves the built-in premium table.
type FallbackSource struct{}

// Name implements Source.
func (FallbackSource) Name() string { return string(SourceFallback) }

// Fetch implements Source. It never fails.
func (FallbackSource) Fetch(context.Context) (PremiumModelCache, error) {
	return FallbackTable(), nil
}

// FallbackTable returns a fresh copy of the built-in table. FetchedAt is left
// zero so a gate seeded from it keeps trying the real source.
func FallbackTable() PremiumModelCache {
	return PremiumModelCache{
		Multipliers: maps.Clone(fallbackMultipliers),
		Source:      SourceFallback,
	}
}
