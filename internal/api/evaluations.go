package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/schedule"
)

// queryError reports a query string that could not be bound.
func queryError(err error) error {
	verr := domain.NewValidationError("query")
	var be *echo.BindingError
	if errors.As(err, &be) {
		for _, v := range be.Values {
			verr.Add(domain.Issue{Field: be.Field, Value: v, Message: "must be a number"})
		}
		if len(be.Values) == 0 {
			verr.Add(domain.Issue{Field: be.Field, Message: "is invalid"})
		}
		return verr
	}
	verr.Add(domain.Issue{Field: "query", Message: err.Error()})
	return verr
}

// GET /evaluations
func (s *Server) listEvaluations(c echo.Context) error {
	var f domain.EvaluationFilter
	if err := echo.QueryParamsBinder(c).
		Int64("site_id", &f.SiteID).
		Int64("cycle_id", &f.CycleID).
		Bool("active_only", &f.ActiveOnly).
		BindError(); err != nil {
		return queryError(err)
	}
	items, err := s.schedule.List(c.Request().Context(), f)
	return listing(c, items, err)
}

// POST /evaluations
func (s *Server) createEvaluation(c echo.Context) error {
	var e domain.ScheduledEvaluation
	if err := bind(c, "scheduled_evaluation", &e); err != nil {
		return err
	}
	created, err := s.schedule.Create(c.Request().Context(), e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// GET /evaluations/:id
func (s *Server) getEvaluation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	e, err := s.schedule.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// PATCH /evaluations/:id
func (s *Server) updateEvaluation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var p schedule.Patch
	if err := bind(c, "scheduled_evaluation", &p); err != nil {
		return err
	}
	e, err := s.schedule.Update(c.Request().Context(), id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// DELETE /evaluations/:id
func (s *Server) deleteEvaluation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.schedule.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
