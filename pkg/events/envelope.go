// Package events publishes the outcomes of scheduling operations (section
// reconciliations, answer key saves, registration batches) for downstream
// consumers such as notification and reporting jobs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeSectionsReconciled     = "sections.reconciled"
	TypeAnswerKeysSaved        = "answerkeys.saved"
	TypeRegistrationsCompleted = "registrations.batch_completed"
)

// SchemaVersion is stamped on every envelope.
const SchemaVersion = "1.0.0"

// Envelope carries one event. Consumers drop envelopes whose IdempotencyKey
// they have already processed.
type Envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Source  string `json:"source"` // e.g. "proctor-api", "registration-worker"
	Version string `json:"version"`

	Timestamp      time.Time `json:"timestamp"`
	IdempotencyKey string    `json:"idempotency_key"`

	// WorkflowID and RunID are set for events emitted by a Temporal activity.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a new envelope. An empty idempotencyKey
// makes the event unique by using the envelope id.
func NewEnvelope(eventType, source, idempotencyKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        SchemaVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
		Payload:        raw,
	}
	if env.IdempotencyKey == "" {
		env.IdempotencyKey = env.ID
	}
	return env, nil
}

// IdempotencyKey derives a stable key from the parts identifying an operation,
// so a retried activity emits the same key.
func IdempotencyKey(eventType string, parts ...any) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s%v", eventType, parts)).String()
}

// EventSink receives envelopes. Append must treat a repeated idempotency key
// as a no-op. Callers never fail their operation because Append failed.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every envelope.
type NoOpEventSink struct{}

func (NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// NewNoOpEventSink returns a sink for processes running without events.
func NewNoOpEventSink() EventSink { return NoOpEventSink{} }
