// Package activity holds the infrastructure shared by conclave's Temporal
// activities: execution metadata, safe logging, heartbeats and best-effort
// event emission. Every helper also works outside an activity context, so
// activity methods can be called directly from tests and the CLI.
package activity

import (
	"context"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-conclave/pkg/events"
)

// LocalWorkflowID identifies runs that happen outside Temporal.
const LocalWorkflowID = "local"

// Event emission retry settings.
const (
	emitAttempts   = 2
	emitRetryDelay = 200 * time.Millisecond
)

// WorkflowContext describes the execution an activity runs in.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// BaseActivities is embedded by every activity type.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities creates BaseActivities emitting to sink. A nil sink
// disables emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext returns the activity's execution metadata, or local
// placeholders when ctx is not an activity context.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	if !inActivity(ctx) {
		return WorkflowContext{WorkflowID: LocalWorkflowID, RunID: LocalWorkflowID, ActivityID: LocalWorkflowID, Attempt: 1}
	}
	info := activity.GetInfo(ctx)
	return WorkflowContext{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		ActivityID: info.ActivityID,
		Attempt:    info.Attempt,
	}
}

// EmitEventSafe appends envelope to the sink, retrying once. Failures are
// logged and never returned.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope) {
	if b.eventSink == nil {
		return
	}

	var lastErr error
	for attempt := range emitAttempts {
		if attempt > 0 {
			select {
			case <-time.After(emitRetryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, "event emission cancelled", "event_type", envelope.Type)
				return
			}
		}
		if lastErr = b.eventSink.Append(ctx, envelope); lastErr == nil {
			SafeLog(ctx, "event emitted", "event_type", envelope.Type, "idempotency_key", envelope.IdempotencyKey)
			return
		}
	}
	SafeLogError(ctx, "event emission failed", "event_type", envelope.Type, "attempts", emitAttempts, "error", lastErr)
}

// RecordHeartbeat heartbeats when ctx is an activity context.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at info through the activity logger, or slog outside
// activities.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	if inActivity(ctx) {
		activity.GetLogger(ctx).Info(msg, keyvals...)
		return
	}
	slog.Default().InfoContext(ctx, msg, keyvals...)
}

// SafeLogError is SafeLog at error level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	if inActivity(ctx) {
		activity.GetLogger(ctx).Error(msg, keyvals...)
		return
	}
	slog.Default().ErrorContext(ctx, msg, keyvals...)
}

// RecordHeartbeat records a heartbeat when ctx is an activity context.
func RecordHeartbeat(ctx context.Context, details ...any) {
	if inActivity(ctx) {
		activity.RecordHeartbeat(ctx, details...)
	}
}

// inActivity reports whether ctx carries activity state. The SDK panics when
// activity info is read from any other context.
func inActivity(ctx context.Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	activity.GetInfo(ctx)
	return true
}
