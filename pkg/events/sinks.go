package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemorySink keeps envelopes in memory, deduplicated by idempotency key.
type MemorySink struct {
	mu        sync.Mutex
	envelopes []Envelope
	seen      map[string]struct{}
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (m *MemorySink) Append(_ context.Context, e Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[e.IdempotencyKey]; dup && e.IdempotencyKey != "" {
		return nil
	}
	m.seen[e.IdempotencyKey] = struct{}{}
	m.envelopes = append(m.envelopes, e)
	return nil
}

// Envelopes returns a copy of the stored envelopes in append order.
func (m *MemorySink) Envelopes() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.envelopes))
	copy(out, m.envelopes)
	return out
}

// LogSink writes each envelope as a structured log record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs to logger, or the default logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "event_sink")}
}

// Append implements EventSink.
func (l *LogSink) Append(ctx context.Context, e Envelope) error {
	l.logger.InfoContext(ctx, "event",
		"type", e.Type,
		"source", e.Source,
		"idempotency_key", e.IdempotencyKey,
		"workflow_id", e.WorkflowID,
		"payload", string(e.Payload))
	return nil
}

// DefaultDedupTTL bounds how long RedisStreamSink remembers idempotency keys.
const DefaultDedupTTL = 24 * time.Hour

// RedisStreamSink publishes envelopes to a Redis stream. A companion
// SET NX key per idempotency key drops duplicates from activity retries.
type RedisStreamSink struct {
	client   redis.UniversalClient
	stream   string
	dedupTTL time.Duration
}

// NewRedisStreamSink creates a sink that XADDs to stream.
func NewRedisStreamSink(client redis.UniversalClient, stream string) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, dedupTTL: DefaultDedupTTL}
}

// Append implements EventSink.
func (r *RedisStreamSink) Append(ctx context.Context, e Envelope) error {
	if e.IdempotencyKey != "" {
		fresh, err := r.client.SetNX(ctx, r.dedupKey(e.IdempotencyKey), e.ID, r.dedupTTL).Result()
		if err != nil {
			return fmt.Errorf("dedup %s: %w", e.Type, err)
		}
		if !fresh {
			return nil
		}
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{"type": e.Type, "envelope": body},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

func (r *RedisStreamSink) dedupKey(idem string) string {
	return r.stream + ":seen:" + idem
}
