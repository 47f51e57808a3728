package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/section"
	"github.com/ahrav/go-proctor/pkg/events"
)

// GET /evaluations/:id/section-assignments
func (s *Server) listSectionAssignments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := s.store.ListSectionAssignments(c.Request().Context(), id)
	return listing(c, items, err)
}

func validateAssignment(a domain.SectionAssignment) error {
	verr := domain.NewValidationError("section_assignment")
	if a.ScheduledEvaluationID <= 0 {
		verr.Add(domain.Issue{Field: "scheduled_evaluation_id", Message: "must be greater than 0"})
	}
	if a.SectionCycleID <= 0 {
		verr.Add(domain.Issue{Field: "section_cycle_id", Message: "must be greater than 0"})
	}
	return verr.OrNil()
}

// POST /section-assignments
func (s *Server) createSectionAssignment(c echo.Context) error {
	var a domain.SectionAssignment
	if err := bind(c, "section_assignment", &a); err != nil {
		return err
	}
	if err := validateAssignment(a); err != nil {
		return err
	}
	a.ID = 0
	created, err := s.store.CreateSectionAssignment(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// PUT /section-assignments/:id
func (s *Server) updateSectionAssignment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var a domain.SectionAssignment
	if err := bind(c, "section_assignment", &a); err != nil {
		return err
	}
	if err := validateAssignment(a); err != nil {
		return err
	}
	a.ID = id
	updated, err := s.store.UpdateSectionAssignment(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

type reconcileRequest struct {
	SectionCycleIDs []int64 `json:"section_cycle_ids"`
}

// PUT /evaluations/:id/sections
//
// Answers 200 when every operation succeeded and 207 with the failures when
// some were rejected; committed operations are not rolled back.
func (s *Server) reconcileSections(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req reconcileRequest
	if err := bind(c, "section_selection", &req); err != nil {
		return err
	}
	verr := domain.NewValidationError("section_selection")
	for i, sc := range req.SectionCycleIDs {
		if sc <= 0 {
			verr.Add(domain.Issue{Field: "section_cycle_ids", Row: i + 1, Message: "must be greater than 0"})
		}
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	if _, err := s.schedule.Get(ctx, id); err != nil {
		return err
	}

	res, err := s.reconciler.Reconcile(ctx, id, req.SectionCycleIDs)
	if err != nil && !errors.Is(err, section.ErrPartial) {
		return err
	}
	s.publisher.Publish(ctx, events.TypeSectionsReconciled, "", map[string]any{
		"evaluation_id": id,
		"created":       res.Created,
		"reactivated":   res.Reactivated,
		"deactivated":   res.Deactivated,
		"failed":        len(res.Failures),
	})
	if err != nil {
		return c.JSON(http.StatusMultiStatus, res)
	}
	return c.JSON(http.StatusOK, res)
}
