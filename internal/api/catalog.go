package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /catalog/sites
func (s *Server) listSites(c echo.Context) error {
	items, err := s.catalog.Sites(c.Request().Context())
	return listing(c, items, err)
}

// GET /catalog/cycles
func (s *Server) listCycles(c echo.Context) error {
	items, err := s.catalog.Cycles(c.Request().Context())
	return listing(c, items, err)
}

// GET /catalog/sections
func (s *Server) listSections(c echo.Context) error {
	items, err := s.catalog.Sections(c.Request().Context())
	return listing(c, items, err)
}

// GET /catalog/careers
func (s *Server) listCareers(c echo.Context) error {
	items, err := s.catalog.Careers(c.Request().Context())
	return listing(c, items, err)
}

// GET /catalog/section-cycles
func (s *Server) listSectionCycles(c echo.Context) error {
	var cycleID int64
	if err := echo.QueryParamsBinder(c).Int64("cycle_id", &cycleID).BindError(); err != nil {
		return queryError(err)
	}
	items, err := s.catalog.SectionCycles(c.Request().Context(), cycleID)
	return listing(c, items, err)
}

// GET /catalog/section-cycles/:id
func (s *Server) getSectionCycle(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sc, err := s.catalog.SectionCycle(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

// POST /catalog/invalidate
func (s *Server) invalidateCatalog(c echo.Context) error {
	if err := s.catalog.Invalidate(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
