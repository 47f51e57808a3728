// Package api exposes the data service contract and the evaluation
// workflows over HTTP.
//
// The data routes mirror the remote data service: listings answer 404 when
// empty, writes answer the stored record. The workflow routes drive the
// reconciliation, answer key, registration, and grading services.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ahrav/go-proctor/internal/answerkey"
	"github.com/ahrav/go-proctor/internal/catalog"
	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/grading"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/schedule"
	"github.com/ahrav/go-proctor/internal/scoreband"
	"github.com/ahrav/go-proctor/internal/section"
	"github.com/ahrav/go-proctor/internal/worker"
	"github.com/ahrav/go-proctor/pkg/events"
)

// EventSource stamps the envelopes published by the server.
const EventSource = "proctor-api"

// Store is the data service surface served by the API.
type Store interface {
	schedule.Store
	section.Store
	scoreband.Store
	answerkey.Store
	registration.Store
	registration.Enrollments

	GetScoreBand(ctx context.Context, id int64) (domain.ScoreBandDetail, error)
	ListRegistrations(ctx context.Context, evaluationID int64) ([]domain.EvaluationRegistration, error)
}

// WorkflowStarter starts bulk registrations in the background.
type WorkflowStarter interface {
	StartBulkRegistration(ctx context.Context, t registration.Target) (worker.Execution, error)
}

// Instance identifies the serving process in health responses.
type Instance struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Server wires the services to echo routes.
type Server struct {
	echo *echo.Echo

	store      Store
	catalog    *catalog.Catalog
	schedule   *schedule.Service
	bands      *scoreband.Set
	reconciler *section.Reconciler
	registrar  *registration.Registrar
	grader     *grading.Grader

	starter     WorkflowStarter
	publisher   *events.Publisher
	concurrency int
	instance    Instance
	logger      *slog.Logger
}

// New creates a Server over store. Section cycle lookups and catalog routes
// go through cat.
func New(store Store, cat *catalog.Catalog) *Server {
	bands := scoreband.New(store)
	s := &Server{
		store:       store,
		catalog:     cat,
		schedule:    schedule.NewService(store),
		bands:       bands,
		reconciler:  section.NewReconciler(store, cat),
		registrar:   registration.NewRegistrar(store, store),
		grader:      grading.NewGrader(bands, store),
		concurrency: answerkey.DefaultConcurrency,
		logger:      slog.Default().With("component", "api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("2M"))

	s.echo = e
	s.registerRoutes()
	return s
}

// WithStarter makes bulk registration run as a workflow.
func (s *Server) WithStarter(st WorkflowStarter) *Server {
	s.starter = st
	return s
}

// WithPublisher publishes reconciliation and answer key events to p.
func (s *Server) WithPublisher(p *events.Publisher) *Server {
	s.publisher = p
	return s
}

// WithConcurrency bounds the parallel store calls of a single request.
func (s *Server) WithConcurrency(n int) *Server {
	if n > 0 {
		s.concurrency = n
		s.reconciler.WithConcurrency(n)
	}
	return s
}

// WithInstance sets the identity reported by /healthz.
func (s *Server) WithInstance(in Instance) *Server {
	s.instance = in
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }
