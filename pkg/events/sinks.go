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

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "proctor:events"

// dedupTTL bounds how long an idempotency key suppresses duplicates.
const dedupTTL = 24 * time.Hour

// RedisStreamSink appends envelopes to a Redis stream. Duplicate
// idempotency keys within dedupTTL are dropped.
type RedisStreamSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink writing to stream, trimmed to roughly maxLen
// entries. An empty stream uses DefaultStream; maxLen <= 0 disables trimming.
func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// appendScript records the idempotency key and adds the entry atomically.
// Returns 0 when the key was already seen.
var appendScript = redis.NewScript(`
if redis.call("SET", KEYS[2], "1", "NX", "PX", ARGV[1]) == false then
  return 0
end
local args = {KEYS[1]}
if tonumber(ARGV[2]) > 0 then
  table.insert(args, "MAXLEN")
  table.insert(args, "~")
  table.insert(args, ARGV[2])
end
table.insert(args, "*")
table.insert(args, "type")
table.insert(args, ARGV[3])
table.insert(args, "envelope")
table.insert(args, ARGV[4])
redis.call("XADD", unpack(args))
return 1
`)

// Append implements EventSink.
func (s *RedisStreamSink) Append(ctx context.Context, envelope Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	dedupKey := s.stream + ":seen:" + envelope.IdempotencyKey
	err = appendScript.Run(ctx, s.client,
		[]string{s.stream, dedupKey},
		dedupTTL.Milliseconds(), s.maxLen, envelope.Type, string(data),
	).Err()
	if err != nil {
		return fmt.Errorf("append %s to %s: %w", envelope.Type, s.stream, err)
	}
	return nil
}

// LogSink writes envelopes to a structured logger. It is the default sink
// when Redis is not configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// Append implements EventSink.
func (s *LogSink) Append(ctx context.Context, envelope Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"type", envelope.Type,
		"source", envelope.Source,
		"idempotency_key", envelope.IdempotencyKey,
		"payload", string(envelope.Payload),
	)
	return nil
}

// MemorySink keeps envelopes in memory, dropping repeated idempotency keys.
type MemorySink struct {
	mu     sync.Mutex
	seen   map[string]bool
	events []Envelope
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{seen: make(map[string]bool)} }

// Append implements EventSink.
func (s *MemorySink) Append(_ context.Context, envelope Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[envelope.IdempotencyKey] {
		return nil
	}
	s.seen[envelope.IdempotencyKey] = true
	s.events = append(s.events, envelope)
	return nil
}

// Events returns the envelopes appended so far.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.events))
	copy(out, s.events)
	return out
}

// Publisher emits envelopes without failing the caller. Sink errors are logged.
type Publisher struct {
	sink   EventSink
	source string
	logger *slog.Logger
}

// NewPublisher creates a Publisher stamping source on every envelope. A nil
// sink disables publishing.
func NewPublisher(sink EventSink, source string) *Publisher {
	return &Publisher{sink: sink, source: source, logger: slog.Default().With("component", "events")}
}

// Publish builds and appends an envelope for payload.
func (p *Publisher) Publish(ctx context.Context, eventType, idempotencyKey string, payload any) {
	if p == nil || p.sink == nil {
		return
	}
	env, err := NewEnvelope(eventType, p.source, idempotencyKey, payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event", "type", eventType, "error", err)
		return
	}
	if err := p.sink.Append(ctx, env); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event", "type", eventType, "error", err)
	}
}
