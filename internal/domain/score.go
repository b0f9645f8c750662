// Package domain defines the value types shared by the interviewer, the panel
// and the invocation layer: metric scores, weights, candidates, ballots and the
// decision records handed to external consumers.
//
// Every type here is immutable once constructed. Constructors validate their
// inputs so that downstream code, in particular the scoring engine, never has
// to handle an out-of-range rating.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Metric names one of the six rated evaluation criteria.
type Metric string

// The six metrics every Score carries.
const (
	MetricAccuracy       Metric = "accuracy"
	MetricRelevance      Metric = "relevance"
	MetricCompleteness   Metric = "completeness"
	MetricExplainability Metric = "explainability"
	MetricEfficiency     Metric = "efficiency"
	MetricSafety         Metric = "safety"
)

// Rating bounds for every metric.
const (
	MinRating = 0
	MaxRating = 5
)

// Metrics lists the metrics in canonical order.
var Metrics = [...]Metric{
	MetricAccuracy,
	MetricRelevance,
	MetricCompleteness,
	MetricExplainability,
	MetricEfficiency,
	MetricSafety,
}

// Score holds one integer rating in [0,5] for each metric.
// The zero value is a valid all-zero score; any other value must come from
// NewScore or ScoreFromMap so the range invariant holds.
type Score struct {
	Accuracy       int `json:"accuracy"`
	Relevance      int `json:"relevance"`
	Completeness   int `json:"completeness"`
	Explainability int `json:"explainability"`
	Efficiency     int `json:"efficiency"`
	Safety         int `json:"safety"`
}

// NewScore builds a Score from ratings given in canonical metric order.
func NewScore(accuracy, relevance, completeness, explainability, efficiency, safety int) (Score, error) {
	s := Score{
		Accuracy:       accuracy,
		Relevance:      relevance,
		Completeness:   completeness,
		Explainability: explainability,
		Efficiency:     efficiency,
		Safety:         safety,
	}
	if err := s.Validate(); err != nil {
		return Score{}, err
	}
	return s, nil
}

// ScoreFromMap builds a Score from a metric-keyed map. All six metrics must be
// present; unknown keys are rejected.
func ScoreFromMap(ratings map[Metric]int) (Score, error) {
	for m := range ratings {
		if !m.Valid() {
			return Score{}, fmt.Errorf("%w: unknown metric %q", ErrInvalidScore, m)
		}
	}
	var vals [len(Metrics)]int
	for i, m := range Metrics {
		v, ok := ratings[m]
		if !ok {
			return Score{}, fmt.Errorf("%w: missing metric %q", ErrInvalidScore, m)
		}
		vals[i] = v
	}
	return NewScore(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5])
}

// Validate reports whether every rating lies in [0,5].
func (s Score) Validate() error {
	for _, m := range Metrics {
		if v := s.Rating(m); v < MinRating || v > MaxRating {
			return fmt.Errorf("%w: %s=%d outside [%d,%d]", ErrInvalidScore, m, v, MinRating, MaxRating)
		}
	}
	return nil
}

// UnmarshalJSON decodes a Score and range-checks it, so a decoded Score holds
// the same invariant as one from NewScore.
func (s *Score) UnmarshalJSON(data []byte) error {
	type plain Score
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := Score(decoded).Validate(); err != nil {
		return err
	}
	*s = Score(decoded)
	return nil
}

// Rating returns the rating for m, or 0 for an unknown metric.
func (s Score) Rating(m Metric) int {
	switch m {
	case MetricAccuracy:
		return s.Accuracy
	case MetricRelevance:
		return s.Relevance
	case MetricCompleteness:
		return s.Completeness
	case MetricExplainability:
		return s.Explainability
	case MetricEfficiency:
		return s.Efficiency
	case MetricSafety:
		return s.Safety
	default:
		return 0
	}
}

// Valid reports whether m is one of the six known metrics.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// Default weight set. Sums to 1.0.
const (
	DefaultWeightAccuracy       = 0.30
	DefaultWeightRelevance      = 0.20
	DefaultWeightCompleteness   = 0.15
	DefaultWeightExplainability = 0.10
	DefaultWeightEfficiency     = 0.10
	DefaultWeightSafety         = 0.15
)

// ScoringWeights assigns a non-negative relative weight to each metric.
type ScoringWeights struct {
	Accuracy       float64 `json:"accuracy" yaml:"accuracy"`
	Relevance      float64 `json:"relevance" yaml:"relevance"`
	Completeness   float64 `json:"completeness" yaml:"completeness"`
	Explainability float64 `json:"explainability" yaml:"explainability"`
	Efficiency     float64 `json:"efficiency" yaml:"efficiency"`
	Safety         float64 `json:"safety" yaml:"safety"`
}

// DefaultWeights returns the canonical 30/20/15/10/10/15 weight set.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Accuracy:       DefaultWeightAccuracy,
		Relevance:      DefaultWeightRelevance,
		Completeness:   DefaultWeightCompleteness,
		Explainability: DefaultWeightExplainability,
		Efficiency:     DefaultWeightEfficiency,
		Safety:         DefaultWeightSafety,
	}
}

// Weight returns the weight for m, or 0 for an unknown metric.
func (w ScoringWeights) Weight(m Metric) float64 {
	switch m {
	case MetricAccuracy:
		return w.Accuracy
	case MetricRelevance:
		return w.Relevance
	case MetricCompleteness:
		return w.Completeness
	case MetricExplainability:
		return w.Explainability
	case MetricEfficiency:
		return w.Efficiency
	case MetricSafety:
		return w.Safety
	default:
		return 0
	}
}

// Total returns the sum of all six weights.
func (w ScoringWeights) Total() float64 {
	var sum float64
	for _, m := range Metrics {
		sum += w.Weight(m)
	}
	return sum
}

// IsZero reports whether no weight was set.
func (w ScoringWeights) IsZero() bool { return w == ScoringWeights{} }

// Validate rejects negative, non-finite or all-zero weight sets.
func (w ScoringWeights) Validate() error {
	for _, m := range Metrics {
		v := w.Weight(m)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeights, m, v)
		}
	}
	if w.Total() == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	return nil
}
