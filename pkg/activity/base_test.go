package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-proctor/pkg/events"
)

type flakySink struct {
	failures int
	calls    int
	got      []events.Envelope
}

func (f *flakySink) Append(_ context.Context, env events.Envelope) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("unavailable")
	}
	f.got = append(f.got, env)
	return nil
}

func TestExecution_OutsideActivity(t *testing.T) {
	base := NewBaseActivities(nil, "test")
	exec := base.Execution(context.Background())

	assert.Equal(t, detached, exec)
	assert.Equal(t, int32(1), exec.Attempt)
}

func TestEmit(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantCalls int
		delivered bool
	}{
		{name: "first try", failures: 0, attempts: 2, wantCalls: 1, delivered: true},
		{name: "retries once", failures: 1, attempts: 2, wantCalls: 2, delivered: true},
		{name: "gives up", failures: 5, attempts: 2, wantCalls: 2},
		{name: "more attempts", failures: 2, attempts: 3, wantCalls: 3, delivered: true},
		{name: "attempts floor at one", failures: 1, attempts: 0, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &flakySink{failures: tt.failures}
			base := NewBaseActivities(sink, "registration-activity").WithEmitRetry(tt.attempts, 0)

			base.Emit(context.Background(), events.TypeRegistrationsCompleted, "key", map[string]int{"total": 1})

			assert.Equal(t, tt.wantCalls, sink.calls)
			if !tt.delivered {
				assert.Empty(t, sink.got)
				return
			}
			require.Len(t, sink.got, 1)
			assert.Equal(t, "registration-activity", sink.got[0].Source)
			assert.Equal(t, "detached", sink.got[0].WorkflowID)
			assert.Equal(t, "key", sink.got[0].IdempotencyKey)
		})
	}
}

func TestEmit_StopsWhenCancelled(t *testing.T) {
	sink := &flakySink{failures: 1}
	base := NewBaseActivities(sink, "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base.Emit(ctx, events.TypeRegistrationsCompleted, "key", struct{}{})

	assert.Equal(t, 1, sink.calls)
	assert.Empty(t, sink.got)
}

func TestOutsideActivity_NoPanics(t *testing.T) {
	base := NewBaseActivities(nil, "test")
	assert.NotPanics(t, func() {
		base.Emit(context.Background(), events.TypeRegistrationsCompleted, "", struct{}{})
		Heartbeat(context.Background(), 1)
		SafeLog(context.Background(), "ignored")
		SafeLogError(context.Background(), "ignored")
	})
}
