// Package activity holds what the service's Temporal activities share:
// execution metadata, best-effort event emission, heartbeats, and logging that
// tolerates running outside a worker.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-proctor/pkg/events"
)

// Execution identifies the workflow run an activity belongs to.
type Execution struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// detached is reported when no activity info is available, as in unit tests.
var detached = Execution{WorkflowID: "detached", RunID: "detached", ActivityID: "detached", Attempt: 1}

const (
	defaultEmitAttempts = 2
	defaultEmitDelay    = 200 * time.Millisecond
)

// BaseActivities is embedded by activity structs.
type BaseActivities struct {
	sink     events.EventSink
	source   string
	attempts int
	delay    time.Duration
}

// NewBaseActivities returns a BaseActivities emitting to sink with source
// stamped on every envelope. A nil sink disables events.
func NewBaseActivities(sink events.EventSink, source string) BaseActivities {
	return BaseActivities{sink: sink, source: source, attempts: defaultEmitAttempts, delay: defaultEmitDelay}
}

// WithEmitRetry sets how many times Emit tries the sink and the pause between
// tries.
func (b BaseActivities) WithEmitRetry(attempts int, delay time.Duration) BaseActivities {
	b.attempts = max(attempts, 1)
	b.delay = delay
	return b
}

// Execution returns the workflow run of the current activity.
func (b *BaseActivities) Execution(ctx context.Context) (exec Execution) {
	defer func() {
		if recover() != nil {
			exec = detached
		}
	}()
	info := activity.GetInfo(ctx)
	return Execution{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		ActivityID: info.ActivityID,
		Attempt:    info.Attempt,
	}
}

// Emit publishes payload as an eventType event stamped with the current
// execution. Failures are logged, never returned to the activity.
func (b *BaseActivities) Emit(ctx context.Context, eventType, idempotencyKey string, payload any) {
	if b.sink == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, b.source, idempotencyKey, payload)
	if err != nil {
		SafeLogError(ctx, "event not built", "event_type", eventType, "error", err)
		return
	}
	exec := b.Execution(ctx)
	env.WorkflowID, env.RunID = exec.WorkflowID, exec.RunID

	if err := b.deliver(ctx, env); err != nil {
		SafeLogError(ctx, "event dropped", "event_type", eventType, "error", err)
		return
	}
	SafeLog(ctx, "event emitted", "event_type", eventType, "idempotency_key", env.IdempotencyKey)
}

func (b *BaseActivities) deliver(ctx context.Context, env events.Envelope) error {
	var err error
	for i := range b.attempts {
		if i > 0 {
			t := time.NewTimer(b.delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return errors.Join(err, ctx.Err())
			}
		}
		if err = b.sink.Append(ctx, env); err == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", b.attempts, err)
}

// inActivity runs fn, absorbing the panic the SDK raises outside an activity.
func inActivity(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// SafeLog logs at info level through the activity logger.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	inActivity(func() { activity.GetLogger(ctx).Info(msg, keyvals...) })
}

// SafeLogError logs at error level through the activity logger.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	inActivity(func() { activity.GetLogger(ctx).Error(msg, keyvals...) })
}

// Heartbeat records activity progress.
func Heartbeat(ctx context.Context, details ...any) {
	inActivity(func() { activity.RecordHeartbeat(ctx, details...) })
}
