package registration

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/pkg/activity"
	"github.com/ahrav/go-proctor/pkg/events"
)

// Activity names registered with the Temporal worker.
const (
	ListEnrollmentsActivity = "ListEnrollments"
	RegisterStudentActivity = "RegisterStudent"
	PublishSummaryActivity  = "PublishSummary"
)

// StudentInput is the input of the RegisterStudent activity.
type StudentInput struct {
	Target    Target `json:"target"`
	StudentID int64  `json:"student_id"`
}

// StudentResult is the output of the RegisterStudent activity. Failures are
// reported in Error rather than as activity errors so the workflow can count
// them and continue.
type StudentResult struct {
	StudentID int64   `json:"student_id"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
}

// SummaryInput is the input of the PublishSummary activity.
type SummaryInput struct {
	Target  Target  `json:"target"`
	Summary Summary `json:"summary"`
}

// Activities exposes the registrar to Temporal workflows.
type Activities struct {
	activity.BaseActivities
	registrar   *Registrar
	enrollments Enrollments
}

// NewActivities creates registration activities.
func NewActivities(base activity.BaseActivities, store Store, enrollments Enrollments) *Activities {
	return &Activities{
		BaseActivities: base,
		registrar:      NewRegistrar(store, enrollments),
		enrollments:    enrollments,
	}
}

// ListEnrollments returns the enrollments of the target's site, cycle, and
// section. A missing listing is empty.
func (a *Activities) ListEnrollments(ctx context.Context, t Target) ([]domain.Enrollment, error) {
	if err := t.Validate(); err != nil {
		return nil, nonRetryable("ListEnrollments", err, "invalid registration target")
	}
	list, err := a.enrollments.ListEnrollments(ctx, t.Scope())
	if list, err = domain.NotFoundAsEmpty(list, err); err != nil {
		return nil, classify("ListEnrollments", err, "list enrollments")
	}
	activity.SafeLog(ctx, "Enrollments listed",
		"evaluation_id", t.EvaluationID,
		"site_id", t.SiteID,
		"cycle_id", t.CycleID,
		"count", len(list))
	return list, nil
}

// RegisterStudent registers one student. A store failure is returned in the
// result, not as an error, so Temporal does not retry a check-then-create
// pair that may already have committed.
func (a *Activities) RegisterStudent(ctx context.Context, in StudentInput) (StudentResult, error) {
	if err := in.Target.Validate(); err != nil {
		return StudentResult{}, nonRetryable("RegisterStudent", err, "invalid registration target")
	}
	if in.StudentID <= 0 {
		return StudentResult{}, nonRetryable("RegisterStudent",
			domain.NewValidationError("registration", domain.Issue{Field: "student_id", Message: "is required"}),
			"invalid student")
	}

	activity.Heartbeat(ctx, in.StudentID)
	outcome, err := a.registrar.RegisterStudent(ctx, in.Target, in.StudentID)
	res := StudentResult{StudentID: in.StudentID, Outcome: outcome}
	if err != nil {
		res.Error = err.Error()
		activity.SafeLogError(ctx, "Student registration failed", "student_id", in.StudentID, "error", err)
	}
	return res, nil
}

// PublishSummary emits the batch completion event.
func (a *Activities) PublishSummary(ctx context.Context, in SummaryInput) error {
	exec := a.Execution(ctx)
	a.Emit(ctx, events.TypeRegistrationsCompleted,
		events.IdempotencyKey(events.TypeRegistrationsCompleted, exec.WorkflowID, exec.RunID),
		in)
	return nil
}

// classify maps store errors onto Temporal retry semantics.
func classify(tag string, err error, msg string) error {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrShape) {
		return nonRetryable(tag, err, msg)
	}
	var re *domain.RemoteError
	if errors.As(err, &re) && !re.Retryable() {
		return nonRetryable(tag, err, msg)
	}
	return retryable(tag, err, msg)
}

// nonRetryable wraps an error as a Temporal non-retryable application error.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps an error as a Temporal retryable application error.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}
