// Package worker registers the workflows and activities of go-proctor with a
// Temporal worker and starts workflow executions on behalf of clients.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/workflow"
	"github.com/ahrav/go-proctor/pkg/activity"
	"github.com/ahrav/go-proctor/pkg/events"
)

// ActivitySource stamps the events emitted by worker activities.
const ActivitySource = "proctor-worker"

// Dependencies are the stores and sinks the activities run against.
type Dependencies struct {
	Registrations registration.Store
	Enrollments   registration.Enrollments

	// Events may be nil to disable event emission.
	Events events.EventSink
}

// RegisterAll registers all workflows and activities with the Temporal worker.
// It must be called once during worker initialization before the worker
// starts.
func RegisterAll(w sdkworker.Worker, deps Dependencies) {
	sink := deps.Events
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := activity.NewBaseActivities(sink, ActivitySource)

	registrations := registration.NewActivities(base, deps.Registrations, deps.Enrollments)

	w.RegisterWorkflow(workflow.BulkRegistrationWorkflow)

	w.RegisterActivity(registrations.ListEnrollments)
	w.RegisterActivity(registrations.RegisterStudent)
	w.RegisterActivity(registrations.PublishSummary)
}
