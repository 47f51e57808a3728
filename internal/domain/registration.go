package domain

// EvaluationRegistration records a student taking a scheduled evaluation.
// At most one active registration exists per (SiteID, CycleID, StudentID),
// across every evaluation of that site and cycle.
type EvaluationRegistration struct {
	ID                    int64  `json:"id"`
	ScheduledEvaluationID int64  `json:"scheduled_evaluation_id"`
	StudentID             int64  `json:"student_id"`
	SiteID                int64  `json:"site_id"`
	CycleID               int64  `json:"cycle_id"`
	SectionID             *int64 `json:"section_id"`
	Active                bool   `json:"active"`
}

// RegistrationKey scopes the registration existence check.
type RegistrationKey struct {
	SiteID    int64 `json:"site_id" query:"site_id"`
	CycleID   int64 `json:"cycle_id" query:"cycle_id"`
	StudentID int64 `json:"student_id" query:"student_id"`
}

// Key returns the existence-check key of r.
func (r EvaluationRegistration) Key() RegistrationKey {
	return RegistrationKey{SiteID: r.SiteID, CycleID: r.CycleID, StudentID: r.StudentID}
}

// Enrollment is a student's enrollment in a section cycle, owned by the
// external enrollment system.
type Enrollment struct {
	StudentID      int64  `json:"student_id"`
	SectionCycleID int64  `json:"section_cycle_id"`
	SiteID         int64  `json:"site_id"`
	CycleID        int64  `json:"cycle_id"`
	SectionID      *int64 `json:"section_id"`
}

// EnrollmentScope selects the enrollments of one site, cycle, and section.
type EnrollmentScope struct {
	SiteID    int64  `json:"site_id" query:"site_id" validate:"gt=0"`
	CycleID   int64  `json:"cycle_id" query:"cycle_id" validate:"gt=0"`
	SectionID *int64 `json:"section_id" query:"section_id"`
}

// Matches reports whether e belongs to the scope.
func (s EnrollmentScope) Matches(e Enrollment) bool {
	return e.SiteID == s.SiteID && e.CycleID == s.CycleID &&
		(s.SectionID == nil || SameID(e.SectionID, s.SectionID))
}
