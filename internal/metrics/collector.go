// Package metrics exports Prometheus collectors for invocations and
// evaluations. A nil *Collector is valid and records nothing.
package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "conclave"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the Prometheus vectors.
type Collector struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	invocationAttempts *prometheus.HistogramVec
	tokensUsed         *prometheus.CounterVec
	dispatchWait       *prometheus.HistogramVec

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	tieBreakRounds     *prometheus.HistogramVec
	ballotsTotal       *prometheus.CounterVec
}

// NewCollector registers the collectors with reg. A nil reg registers with
// the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		invocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "invocations_total",
				Help:      "Total number of model invocations by outcome",
			},
			[]string{"model", "outcome"},
		),
		invocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "invocation_duration_seconds",
				Help:      "End-to-end invocation duration including rate-limit waits and retries",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"model"},
		),
		invocationAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "invocation_attempts",
				Help:      "Provider attempts per successful invocation",
				Buckets:   []float64{1, 2, 3, 5, 8},
			},
			[]string{"model"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tokens_used_total",
				Help:      "Tokens billed across all attempts",
			},
			[]string{"model", "type"},
		),
		dispatchWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "dispatch_wait_seconds",
				Help:      "Time spent waiting for the rate limiter before dispatch",
				Buckets:   []float64{0, 1, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		evaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "evaluations_total",
				Help:      "Interviewer and panel runs by outcome",
			},
			[]string{"engine", "outcome"},
		),
		evaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Interviewer and panel run duration",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"engine"},
		),
		tieBreakRounds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "tiebreak_rounds",
				Help:      "Tie-break rounds fired per evaluation",
				Buckets:   []float64{0, 1, 2, 3},
			},
			[]string{"engine"},
		),
		ballotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ballots_total",
				Help:      "Panel ballots cast per persona",
			},
			[]string{"persona"},
		),
	}

	slog.Default().With("component", "metrics").Debug("metrics collector initialized", "namespace", Namespace)
	return c
}

// RecordInvocation records one finished invocation. outcome is
// OutcomeSuccess or an error kind.
func (c *Collector) RecordInvocation(model, outcome string, d time.Duration, attempts int, promptTokens, completionTokens int64) {
	if c == nil {
		return
	}
	c.invocationsTotal.WithLabelValues(model, outcome).Inc()
	c.invocationDuration.WithLabelValues(model).Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		c.invocationAttempts.WithLabelValues(model).Observe(float64(attempts))
	}
	c.tokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.tokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordDispatchWait records how long a call waited for its dispatch slot.
func (c *Collector) RecordDispatchWait(model string, d time.Duration) {
	if c == nil {
		return
	}
	c.dispatchWait.WithLabelValues(model).Observe(d.Seconds())
}

// RecordEvaluation records one interviewer or panel run.
func (c *Collector) RecordEvaluation(engine, outcome string, tieBreakRounds int, d time.Duration) {
	if c == nil {
		return
	}
	c.evaluationsTotal.WithLabelValues(engine, outcome).Inc()
	c.evaluationDuration.WithLabelValues(engine).Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		c.tieBreakRounds.WithLabelValues(engine).Observe(float64(tieBreakRounds))
	}
}

// RecordBallot counts one ballot cast by persona.
func (c *Collector) RecordBallot(persona string) {
	if c == nil {
		return
	}
	c.ballotsTotal.WithLabelValues(persona).Inc()
}
