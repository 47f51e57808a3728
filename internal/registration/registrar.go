// Package registration enrolls the students of a site, cycle, and section
// into a scheduled evaluation exactly once.
//
// A student counts as already registered when any active registration exists
// for the same site, cycle, and student, whichever evaluation it belongs to.
// Students are processed one at a time; a failure for one student is counted
// and the batch moves on.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-proctor/internal/domain"
)

// Store is the registration persistence surface.
type Store interface {
	// FindRegistrations returns the registrations matching key. An empty
	// result may be reported as domain.ErrNotFound.
	FindRegistrations(ctx context.Context, key domain.RegistrationKey) ([]domain.EvaluationRegistration, error)
	CreateRegistration(ctx context.Context, r domain.EvaluationRegistration) (domain.EvaluationRegistration, error)
}

// Enrollments lists the students enrolled in a site, cycle, and section.
type Enrollments interface {
	ListEnrollments(ctx context.Context, scope domain.EnrollmentScope) ([]domain.Enrollment, error)
}

// Target identifies where students are registered.
type Target struct {
	EvaluationID int64  `json:"evaluation_id" validate:"gt=0"`
	SiteID       int64  `json:"site_id" validate:"gt=0"`
	CycleID      int64  `json:"cycle_id" validate:"gt=0"`
	SectionID    *int64 `json:"section_id"`
}

// Validate checks that the target names an evaluation, site, and cycle.
func (t Target) Validate() error { return domain.ValidateStruct("registration_target", t) }

// Scope returns the enrollment scope of the target.
func (t Target) Scope() domain.EnrollmentScope {
	return domain.EnrollmentScope{SiteID: t.SiteID, CycleID: t.CycleID, SectionID: domain.CloneID(t.SectionID)}
}

// Request is a batch registration with the enrollments to process.
type Request struct {
	Target
	Enrollments []domain.Enrollment `json:"enrollments"`
}

// Outcome is the result of registering one student.
type Outcome string

const (
	OutcomeRegistered Outcome = "registered"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeFailed     Outcome = "failed"
)

// StudentFailure records why one student could not be registered.
type StudentFailure struct {
	StudentID int64  `json:"student_id"`
	Error     string `json:"error"`
}

// Summary aggregates a batch. Total is the number of distinct students.
type Summary struct {
	Total      int              `json:"total"`
	Registered int              `json:"registered"`
	Duplicates int              `json:"duplicates"`
	Failed     int              `json:"failed"`
	Failures   []StudentFailure `json:"failures,omitempty"`
}

// Record adds the outcome for studentID to the summary.
func (s *Summary) Record(studentID int64, outcome Outcome, err error) {
	switch outcome {
	case OutcomeRegistered:
		s.Registered++
	case OutcomeDuplicate:
		s.Duplicates++
	default:
		s.Failed++
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		s.Failures = append(s.Failures, StudentFailure{StudentID: studentID, Error: msg})
	}
}

// String renders the summary the way operators read it.
func (s Summary) String() string {
	return fmt.Sprintf("%d registered, %d duplicates, %d failed of %d students",
		s.Registered, s.Duplicates, s.Failed, s.Total)
}

// DistinctStudents returns the student ids of enrollments in first-seen order.
func DistinctStudents(enrollments []domain.Enrollment) []int64 {
	seen := make(map[int64]bool, len(enrollments))
	ids := make([]int64, 0, len(enrollments))
	for _, e := range enrollments {
		if seen[e.StudentID] {
			continue
		}
		seen[e.StudentID] = true
		ids = append(ids, e.StudentID)
	}
	return ids
}

// Registrar registers students through a Store.
type Registrar struct {
	store       Store
	enrollments Enrollments
	logger      *slog.Logger
}

// NewRegistrar creates a Registrar. enrollments is only needed by RegisterSection.
func NewRegistrar(store Store, enrollments Enrollments) *Registrar {
	return &Registrar{
		store:       store,
		enrollments: enrollments,
		logger:      slog.Default().With("component", "registrar"),
	}
}

// RegisterSection fetches the enrollments of the target's site, cycle, and
// section and registers them.
func (r *Registrar) RegisterSection(ctx context.Context, t Target) (Summary, error) {
	if err := t.Validate(); err != nil {
		return Summary{}, err
	}
	if r.enrollments == nil {
		return Summary{}, errors.New("registrar has no enrollment source")
	}
	list, err := r.enrollments.ListEnrollments(ctx, t.Scope())
	if list, err = domain.NotFoundAsEmpty(list, err); err != nil {
		return Summary{}, fmt.Errorf("list enrollments: %w", err)
	}
	return r.Register(ctx, Request{Target: t, Enrollments: list})
}

// Register processes the distinct students of req.Enrollments sequentially.
// An empty batch returns a zero Summary before the target is validated and
// without store calls. When ctx is cancelled the loop stops between students
// and the partial summary is returned with the context error.
func (r *Registrar) Register(ctx context.Context, req Request) (Summary, error) {
	students := DistinctStudents(req.Enrollments)
	if len(students) == 0 {
		return Summary{}, nil
	}
	if err := req.Target.Validate(); err != nil {
		return Summary{}, err
	}
	summary := Summary{Total: len(students)}

	for _, studentID := range students {
		if err := ctx.Err(); err != nil {
			r.logger.WarnContext(ctx, "registration batch interrupted",
				"evaluation_id", req.EvaluationID, "processed", summary.Registered+summary.Duplicates+summary.Failed,
				"total", summary.Total)
			return summary, fmt.Errorf("register students: %w", err)
		}
		outcome, err := r.RegisterStudent(ctx, req.Target, studentID)
		summary.Record(studentID, outcome, err)
	}

	r.logger.InfoContext(ctx, "registration batch completed",
		"evaluation_id", req.EvaluationID,
		"site_id", req.SiteID,
		"cycle_id", req.CycleID,
		"total", summary.Total,
		"registered", summary.Registered,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return summary, nil
}

// RegisterStudent registers one student unless an active registration for
// the same site, cycle, and student exists. A failed check or create yields
// OutcomeFailed with the cause. A create rejected as a duplicate by the store
// counts as OutcomeDuplicate.
func (r *Registrar) RegisterStudent(ctx context.Context, t Target, studentID int64) (Outcome, error) {
	key := domain.RegistrationKey{SiteID: t.SiteID, CycleID: t.CycleID, StudentID: studentID}

	found, err := r.exists(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "registration check failed", "student_id", studentID, "error", err)
		return OutcomeFailed, fmt.Errorf("check student %d: %w", studentID, err)
	}
	if found {
		return OutcomeDuplicate, nil
	}

	_, err = r.store.CreateRegistration(ctx, domain.EvaluationRegistration{
		ScheduledEvaluationID: t.EvaluationID,
		StudentID:             studentID,
		SiteID:                t.SiteID,
		CycleID:               t.CycleID,
		SectionID:             domain.CloneID(t.SectionID),
		Active:                true,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateRegistration):
		return OutcomeDuplicate, nil
	case err != nil:
		r.logger.WarnContext(ctx, "registration create failed", "student_id", studentID, "error", err)
		return OutcomeFailed, fmt.Errorf("register student %d: %w", studentID, err)
	}
	return OutcomeRegistered, nil
}

func (r *Registrar) exists(ctx context.Context, key domain.RegistrationKey) (bool, error) {
	regs, err := r.store.FindRegistrations(ctx, key)
	if regs, err = domain.NotFoundAsEmpty(regs, err); err != nil {
		return false, err
	}
	for _, reg := range regs {
		if reg.Active && reg.Key() == key {
			return true, nil
		}
	}
	return false, nil
}
