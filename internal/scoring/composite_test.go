package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
)

func mustScore(t *testing.T, r ...int) domain.Score {
	t.Helper()
	require.Len(t, r, len(domain.Metrics))
	s, err := domain.NewScore(r[0], r[1], r[2], r[3], r[4], r[5])
	require.NoError(t, err)
	return s
}

func TestComposite_Bounds(t *testing.T) {
	w := domain.DefaultWeights()

	assert.Equal(t, 100.0, Composite(mustScore(t, 5, 5, 5, 5, 5, 5), w))
	assert.Equal(t, 0.0, Composite(mustScore(t, 0, 0, 0, 0, 0, 0), w))
}

func TestComposite_KnownValues(t *testing.T) {
	tests := []struct {
		name    string
		score   [6]int
		weights domain.ScoringWeights
		want    float64
	}{
		{
			name:    "accuracy only",
			score:   [6]int{5, 0, 0, 0, 0, 0},
			weights: domain.DefaultWeights(),
			want:    30,
		},
		{
			name:    "mixed default weights",
			score:   [6]int{4, 3, 5, 2, 1, 5},
			weights: domain.DefaultWeights(),
			// (.3*.8 + .2*.6 + .15*1 + .1*.4 + .1*.2 + .15*1) * 100
			want: 72,
		},
		{
			name:    "unnormalized weights are relative",
			score:   [6]int{5, 0, 0, 0, 0, 5},
			weights: domain.ScoringWeights{Accuracy: 2, Safety: 2},
			want:    100,
		},
		{
			name:    "zero weights",
			score:   [6]int{5, 5, 5, 5, 5, 5},
			weights: domain.ScoringWeights{},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.score
			got := Composite(mustScore(t, s[0], s[1], s[2], s[3], s[4], s[5]), tt.weights)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// TestComposite_RangeAndMonotonic walks every metric through its full range
// from several base scores and checks the composite never leaves [0,100] and
// never decreases as a single rating increases.
func TestComposite_RangeAndMonotonic(t *testing.T) {
	weightSets := []domain.ScoringWeights{
		domain.DefaultWeights(),
		{Accuracy: 0.4, Relevance: 0.2, Completeness: 0.2, Explainability: 0.1, Efficiency: 0.05, Safety: 0.05},
		{Accuracy: 3, Safety: 1},
	}
	bases := [][6]int{
		{0, 0, 0, 0, 0, 0},
		{2, 3, 1, 4, 0, 5},
		{5, 5, 5, 5, 5, 5},
	}

	for _, w := range weightSets {
		for _, base := range bases {
			for mi := range domain.Metrics {
				prev := -1.0
				for v := domain.MinRating; v <= domain.MaxRating; v++ {
					r := base
					r[mi] = v
					got := Composite(mustScore(t, r[0], r[1], r[2], r[3], r[4], r[5]), w)
					assert.GreaterOrEqual(t, got, 0.0)
					assert.LessOrEqual(t, got, 100.0)
					assert.GreaterOrEqual(t, got, prev, "metric %s value %d", domain.Metrics[mi], v)
					prev = got
				}
			}
		}
	}
}

func TestComposite_RejectsUnvalidatedScore(t *testing.T) {
	w := domain.DefaultWeights()

	assert.Equal(t, domain.SentinelComposite, Composite(domain.Score{Accuracy: 9}, w))
	assert.Equal(t, domain.SentinelComposite, Composite(domain.Score{Safety: -1}, w))
	assert.Equal(t, 0.0, Composite(domain.Score{}, w))
}

func TestComposite_Idempotent(t *testing.T) {
	s := mustScore(t, 3, 4, 2, 5, 1, 3)
	w := domain.DefaultWeights()

	first := Composite(s, w)
	second := Composite(s, w)
	assert.Equal(t, first, second)
}
