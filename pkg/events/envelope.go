// Package events carries evaluation outcomes to external consumers. Every
// event travels in an Envelope; sinks decide where envelopes go.
package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the schema version stamped on every envelope.
const EnvelopeVersion = "1.0.0"

// Event types.
const (
	TypeInterviewDecided = "interview.decided"
	TypePanelDecided     = "panel.decided"
	TypeEvaluationUsage  = "evaluation.usage"
)

// Envelope wraps one event payload with routing and deduplication metadata.
type Envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Source  string `json:"source"`
	Version string `json:"version"`
	// IdempotencyKey is derived from the workflow run and event content, so
	// activity retries produce the same key.
	IdempotencyKey string          `json:"idempotency_key"`
	WorkflowID     string          `json:"workflow_id"`
	RunID          string          `json:"run_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(eventType, source, idempotencyKey, workflowID, runID string, at time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        EnvelopeVersion,
		IdempotencyKey: idempotencyKey,
		WorkflowID:     workflowID,
		RunID:          runID,
		Timestamp:      at,
		Payload:        raw,
	}, nil
}

// IdempotencyKey hashes parts joined by ":" into a stable key.
func IdempotencyKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// EventSink delivers envelopes downstream. Append should treat a repeated
// idempotency key as a no-op. Callers never fail their primary operation on
// a sink error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every envelope.
type NoOpEventSink struct{}

// Append implements EventSink.
func (NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink { return NoOpEventSink{} }
