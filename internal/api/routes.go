package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/catalog"
)

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/healthz", s.health)

	// ===== Data service =====
	e.GET("/evaluations", s.listEvaluations)
	e.POST("/evaluations", s.createEvaluation)
	e.GET("/evaluations/:id", s.getEvaluation)
	e.PATCH("/evaluations/:id", s.updateEvaluation)
	e.DELETE("/evaluations/:id", s.deleteEvaluation)

	e.GET("/evaluations/:id/section-assignments", s.listSectionAssignments)
	e.POST("/section-assignments", s.createSectionAssignment)
	e.PUT("/section-assignments/:id", s.updateSectionAssignment)

	e.GET("/evaluations/:id/score-bands", s.listScoreBands)
	e.GET("/score-bands/:id", s.getScoreBand)
	e.POST("/score-bands", s.createScoreBand)
	e.PUT("/score-bands/:id", s.updateScoreBand)

	e.GET("/score-bands/:id/answer-keys", s.listAnswerKeys)
	e.POST("/answer-keys", s.createAnswerKey)
	e.PUT("/answer-keys/:id", s.updateAnswerKey)
	e.DELETE("/answer-keys/:id", s.deleteAnswerKey)

	e.GET("/enrollments", s.listEnrollments)
	e.GET("/registrations", s.findRegistrations)
	e.POST("/registrations", s.createRegistration)
	e.GET("/evaluations/:id/registrations", s.listRegistrations)

	cat := e.Group("/catalog")
	cat.GET("/sites", s.listSites)
	cat.GET("/cycles", s.listCycles)
	cat.GET("/sections", s.listSections)
	cat.GET("/careers", s.listCareers)
	cat.GET("/section-cycles", s.listSectionCycles)
	cat.GET("/section-cycles/:id", s.getSectionCycle)
	cat.POST("/invalidate", s.invalidateCatalog)

	// ===== Workflows =====
	e.PUT("/evaluations/:id/sections", s.reconcileSections)
	e.GET("/score-bands/:id/answer-keys/drafts", s.answerKeyDrafts)
	e.PUT("/score-bands/:id/answer-keys", s.saveAnswerKeys)
	e.POST("/evaluations/:id/registrations/bulk", s.registerSection)
	e.POST("/evaluations/:id/grade", s.grade)
	e.POST("/numeric/parse", s.parseNumber)
}

type healthResponse struct {
	Status   string        `json:"status"`
	Instance Instance      `json:"instance"`
	Catalog  catalog.Stats `json:"catalog_cache"`
}

// GET /healthz
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Instance: s.instance, Catalog: s.catalog.Stats()})
}
