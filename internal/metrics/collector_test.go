package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordInvocation(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordInvocation("gpt-4.1", OutcomeSuccess, 2*time.Second, 2, 100, 40)
	c.RecordInvocation("gpt-4.1", "provider_error", time.Second, 3, 0, 0)

	assert.InDelta(t, 1.0, testutil.ToFloat64(c.invocationsTotal.WithLabelValues("gpt-4.1", OutcomeSuccess)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.invocationsTotal.WithLabelValues("gpt-4.1", "provider_error")), 1e-9)
	assert.InDelta(t, 100.0, testutil.ToFloat64(c.tokensUsed.WithLabelValues("gpt-4.1", "prompt")), 1e-9)
	assert.InDelta(t, 40.0, testutil.ToFloat64(c.tokensUsed.WithLabelValues("gpt-4.1", "completion")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(c.invocationAttempts))
}

func TestCollector_RecordEvaluation(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordEvaluation("panel", OutcomeSuccess, 1, time.Minute)
	c.RecordBallot("Dr. Rigor")
	c.RecordBallot("Dr. Rigor")
	c.RecordDispatchWait("gpt-4.1", 30*time.Second)

	assert.InDelta(t, 1.0, testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("panel", OutcomeSuccess)), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(c.ballotsTotal.WithLabelValues("Dr. Rigor")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(c.dispatchWait))
}

func TestCollector_NilIsNoOp(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordInvocation("m", OutcomeSuccess, time.Second, 1, 1, 1)
		c.RecordDispatchWait("m", time.Second)
		c.RecordEvaluation("interview", OutcomeFailure, 0, time.Second)
		c.RecordBallot("p")
	})
}
