package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/worker"
)

// GET /enrollments
func (s *Server) listEnrollments(c echo.Context) error {
	var (
		scope     domain.EnrollmentScope
		sectionID int64
	)
	if err := echo.QueryParamsBinder(c).
		Int64("site_id", &scope.SiteID).
		Int64("cycle_id", &scope.CycleID).
		Int64("section_id", &sectionID).
		BindError(); err != nil {
		return queryError(err)
	}
	scope.SectionID = domain.ID(sectionID)
	if err := domain.ValidateStruct("enrollment_scope", scope); err != nil {
		return err
	}
	items, err := s.store.ListEnrollments(c.Request().Context(), scope)
	return listing(c, items, err)
}

// GET /registrations
func (s *Server) findRegistrations(c echo.Context) error {
	var key domain.RegistrationKey
	if err := echo.QueryParamsBinder(c).
		Int64("site_id", &key.SiteID).
		Int64("cycle_id", &key.CycleID).
		Int64("student_id", &key.StudentID).
		BindError(); err != nil {
		return queryError(err)
	}
	items, err := s.store.FindRegistrations(c.Request().Context(), key)
	return listing(c, items, err)
}

// GET /evaluations/:id/registrations
func (s *Server) listRegistrations(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := s.store.ListRegistrations(c.Request().Context(), id)
	return listing(c, items, err)
}

// POST /registrations
//
// Answers 409 when the student already holds an active registration for
// the site and cycle.
func (s *Server) createRegistration(c echo.Context) error {
	var r domain.EvaluationRegistration
	if err := bind(c, "evaluation_registration", &r); err != nil {
		return err
	}
	verr := domain.NewValidationError("evaluation_registration")
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"scheduled_evaluation_id", r.ScheduledEvaluationID},
		{"student_id", r.StudentID},
		{"site_id", r.SiteID},
		{"cycle_id", r.CycleID},
	} {
		if f.v <= 0 {
			verr.Add(domain.Issue{Field: f.name, Message: "must be greater than 0"})
		}
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	r.ID = 0
	created, err := s.store.CreateRegistration(c.Request().Context(), r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

type bulkRegistrationRequest struct {
	SiteID    int64  `json:"site_id"`
	CycleID   int64  `json:"cycle_id"`
	SectionID *int64 `json:"section_id"`
}

type bulkRegistrationAccepted struct {
	Target    registration.Target `json:"target"`
	Execution worker.Execution    `json:"execution"`
}

// POST /evaluations/:id/registrations/bulk
//
// Registers every student enrolled in the site, cycle, and section. With a
// workflow starter configured the batch runs in the background and 202 is
// returned; otherwise it runs inline and the summary is returned.
func (s *Server) registerSection(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req bulkRegistrationRequest
	if err := bind(c, "registration_target", &req); err != nil {
		return err
	}
	target := registration.Target{
		EvaluationID: id,
		SiteID:       req.SiteID,
		CycleID:      req.CycleID,
		SectionID:    domain.CloneID(req.SectionID),
	}
	if err := target.Validate(); err != nil {
		return err
	}
	if _, err := s.schedule.Get(ctx, id); err != nil {
		return err
	}

	if s.starter != nil {
		exec, err := s.starter.StartBulkRegistration(ctx, target)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusAccepted, bulkRegistrationAccepted{Target: target, Execution: exec})
	}

	summary, err := s.registrar.RegisterSection(ctx, target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
