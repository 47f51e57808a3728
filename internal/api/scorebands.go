package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/scoreband"
)

// GET /evaluations/:id/score-bands
func (s *Server) listScoreBands(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := s.bands.List(c.Request().Context(), id)
	return listing(c, items, err)
}

// GET /score-bands/:id
func (s *Server) getScoreBand(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := s.store.GetScoreBand(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// POST /score-bands
func (s *Server) createScoreBand(c echo.Context) error {
	var in scoreband.Input
	if err := bind(c, "score_band", &in); err != nil {
		return err
	}
	created, err := s.bands.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// PUT /score-bands/:id
func (s *Server) updateScoreBand(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in scoreband.Input
	if err := bind(c, "score_band", &in); err != nil {
		return err
	}
	updated, err := s.bands.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}
