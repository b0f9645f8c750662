package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/pkg/events"
)

type flakySink struct {
	failures int
	calls    int
	got      []events.Envelope
}

func (f *flakySink) Append(_ context.Context, e events.Envelope) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("sink unavailable")
	}
	f.got = append(f.got, e)
	return nil
}

func envelope(t *testing.T) events.Envelope {
	t.Helper()
	e, err := events.NewEnvelope(events.TypeInterviewDecided, "test", "k", "wf", "run", time.Now(), map[string]string{"a": "b"})
	require.NoError(t, err)
	return e
}

func TestGetWorkflowContext_OutsideActivity(t *testing.T) {
	b := NewBaseActivities(nil)
	wf := b.GetWorkflowContext(context.Background())

	assert.Equal(t, LocalWorkflowID, wf.WorkflowID)
	assert.Equal(t, LocalWorkflowID, wf.RunID)
	assert.Equal(t, int32(1), wf.Attempt)
}

func TestEmitEventSafe(t *testing.T) {
	t.Run("retries once", func(t *testing.T) {
		sink := &flakySink{failures: 1}
		b := NewBaseActivities(sink)
		b.EmitEventSafe(context.Background(), envelope(t))

		assert.Equal(t, 2, sink.calls)
		assert.Len(t, sink.got, 1)
	})

	t.Run("gives up without error", func(t *testing.T) {
		sink := &flakySink{failures: 5}
		b := NewBaseActivities(sink)
		b.EmitEventSafe(context.Background(), envelope(t))

		assert.Equal(t, emitAttempts, sink.calls)
		assert.Empty(t, sink.got)
	})

	t.Run("cancelled during retry delay", func(t *testing.T) {
		sink := &flakySink{failures: 5}
		b := NewBaseActivities(sink)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		b.EmitEventSafe(ctx, envelope(t))

		assert.Equal(t, 1, sink.calls)
	})

	t.Run("nil sink", func(t *testing.T) {
		b := NewBaseActivities(nil)
		assert.NotPanics(t, func() { b.EmitEventSafe(context.Background(), envelope(t)) })
	})
}

func TestSafeHelpersOutsideActivity(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		SafeLog(ctx, "hello", "k", "v")
		SafeLogError(ctx, "oops", "k", "v")
		RecordHeartbeat(ctx, "progress")
	})
}
