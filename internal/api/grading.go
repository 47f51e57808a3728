package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/numeric"
)

type gradeRequest struct {
	SectionID *int64 `json:"section_id"`

	// Responses maps question order to the answer given.
	Responses map[int]string `json:"responses"`
}

// POST /evaluations/:id/grade
func (s *Server) grade(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req gradeRequest
	if err := bind(c, "answer_sheet", &req); err != nil {
		return err
	}
	if _, err := s.schedule.Get(ctx, id); err != nil {
		return err
	}
	res, err := s.grader.Grade(ctx, id, domain.CloneID(req.SectionID), req.Responses)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type parseRequest struct {
	Value any `json:"value"`
}

type parseResponse struct {
	Value      float64 `json:"value"`
	Normalized string  `json:"normalized"`
}

// POST /numeric/parse
func (s *Server) parseNumber(c echo.Context) error {
	var req parseRequest
	if err := bind(c, "number", &req); err != nil {
		return err
	}
	f, ok := numeric.Parse(req.Value)
	if !ok {
		return domain.NewValidationError("number", domain.Issue{Field: "value", Message: "is not a number"})
	}
	return c.JSON(http.StatusOK, parseResponse{Value: f, Normalized: numeric.Format(f)})
}
