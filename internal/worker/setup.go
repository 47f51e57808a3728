package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-proctor/internal/config"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/workflow"
)

// Dial connects to the Temporal frontend described by cfg.
func Dial(ctx context.Context, cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	c, err := client.DialContext(ctx, client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// New creates a worker on cfg.TaskQueue with every workflow and activity
// registered.
func New(c client.Client, cfg config.TemporalConfig, deps Dependencies) sdkworker.Worker {
	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	RegisterAll(w, deps)
	return w
}

// Execution identifies a started workflow run.
type Execution struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Starter starts bulk registration workflows.
type Starter struct {
	client    client.Client
	taskQueue string
}

// NewStarter creates a Starter submitting to taskQueue.
func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// BulkRegistrationID is the workflow id of a target's registration batch.
// Only one batch per target runs at a time.
func BulkRegistrationID(t registration.Target) string {
	section := "all"
	if t.SectionID != nil {
		section = strconv.FormatInt(*t.SectionID, 10)
	}
	return fmt.Sprintf("bulk-registration-%d-%d-%d-%s", t.EvaluationID, t.SiteID, t.CycleID, section)
}

// StartBulkRegistration starts a BulkRegistrationWorkflow for t.
func (s *Starter) StartBulkRegistration(ctx context.Context, t registration.Target) (Execution, error) {
	if err := t.Validate(); err != nil {
		return Execution{}, err
	}
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       BulkRegistrationID(t),
		TaskQueue:                s.taskQueue,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, workflow.BulkRegistrationWorkflow, t)
	if err != nil {
		return Execution{}, fmt.Errorf("start bulk registration: %w", err)
	}
	return Execution{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}
