// Package scoring implements the weighted composite score shared by the
// interviewer and the panel, plus the evaluator rubric prompt and the tolerant
// parser for evaluator replies.
package scoring

import (
	"math"

	"github.com/ahrav/go-conclave/internal/domain"
)

// MaxComposite is the composite of a perfect score.
const MaxComposite = 100.0

// compositePrecision is the number of decimal places composites are rounded to.
const compositePrecision = 100

// Composite computes 100 * Σ w_i * s_i / 5 over the six metrics, with weights
// normalized by their total, rounded to two decimal places.
//
// Composite accepts only validated scores, as built by domain.NewScore,
// domain.ScoreFromMap or JSON decoding. A Score literal with a rating outside
// [0,5] yields domain.SentinelComposite, the value of a failed evaluation.
// An all-zero weight set yields 0. The function is pure: identical inputs give
// bit-identical results.
func Composite(score domain.Score, weights domain.ScoringWeights) float64 {
	if score.Validate() != nil {
		return domain.SentinelComposite
	}
	total := weights.Total()
	if total <= 0 {
		return 0
	}

	var sum float64
	for _, m := range domain.Metrics {
		sum += (weights.Weight(m) / total) * (float64(score.Rating(m)) / domain.MaxRating)
	}

	c := math.Round(sum*MaxComposite*compositePrecision) / compositePrecision
	return math.Max(0, math.Min(MaxComposite, c))
}
