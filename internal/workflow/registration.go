package workflow

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/registration"
)

// ProgressQuery returns the running registration.Summary of a
// BulkRegistrationWorkflow.
const ProgressQuery = "progress"

// BulkRegistrationWorkflow registers every enrolled student of the target's
// site, cycle, and section into the target evaluation. Students are processed
// one at a time; a student whose registration fails is counted and the batch
// moves on. The completed summary is published as an event and returned.
func BulkRegistrationWorkflow(ctx workflow.Context, target registration.Target) (registration.Summary, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "bulk-registration.v", workflow.DefaultVersion, currentVersion)

	logger := workflow.GetLogger(ctx)
	var summary registration.Summary
	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (registration.Summary, error) {
		return summary, nil
	}); err != nil {
		return summary, err
	}

	if err := target.Validate(); err != nil {
		return summary, temporal.NewNonRetryableApplicationError("invalid registration target", "Validation", err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var enrollments []domain.Enrollment
	if err := workflow.ExecuteActivity(ctx, registration.ListEnrollmentsActivity, target).Get(ctx, &enrollments); err != nil {
		return summary, err
	}

	students := registration.DistinctStudents(enrollments)
	summary.Total = len(students)
	for _, studentID := range students {
		var res registration.StudentResult
		err := workflow.ExecuteActivity(ctx, registration.RegisterStudentActivity,
			registration.StudentInput{Target: target, StudentID: studentID}).Get(ctx, &res)
		switch {
		case err != nil:
			summary.Record(studentID, registration.OutcomeFailed, err)
		case res.Error != "":
			summary.Record(studentID, res.Outcome, errors.New(res.Error))
		default:
			summary.Record(studentID, res.Outcome, nil)
		}
	}

	if err := workflow.ExecuteActivity(ctx, registration.PublishSummaryActivity,
		registration.SummaryInput{Target: target, Summary: summary}).Get(ctx, nil); err != nil {
		logger.Warn("Failed to publish registration summary", "error", err)
	}

	logger.Info("Bulk registration completed",
		"evaluation_id", target.EvaluationID,
		"total", summary.Total,
		"registered", summary.Registered,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed)
	return summary, nil
}
