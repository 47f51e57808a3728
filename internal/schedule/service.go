// Package schedule creates, reschedules, and removes scheduled evaluations.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ahrav/go-proctor/internal/domain"
)

// Store is the persistence surface needed by Service.
type Store interface {
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ScheduledEvaluation, error)
	GetEvaluation(ctx context.Context, id int64) (domain.ScheduledEvaluation, error)
	CreateEvaluation(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error)
	UpdateEvaluation(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error)
	DeleteEvaluation(ctx context.Context, id int64) error
}

// Patch is a partial update. Nil fields are left unchanged. For the nullable
// references a non-nil value of zero or less clears the reference.
type Patch struct {
	SiteID           *int64  `json:"site_id"`
	CycleID          *int64  `json:"cycle_id"`
	EvaluationTypeID *int64  `json:"evaluation_type_id"`
	Name             *string `json:"name"`
	StartDate        *string `json:"start_date"`
	StartTime        *string `json:"start_time"`
	EndTime          *string `json:"end_time"`
	CareerID         *int64  `json:"career_id"`
	Active           *bool   `json:"active"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// ApplyTo returns e with the patch applied.
func (p Patch) ApplyTo(e domain.ScheduledEvaluation) domain.ScheduledEvaluation {
	if p.SiteID != nil {
		e.SiteID = *p.SiteID
	}
	if p.CycleID != nil {
		e.CycleID = domain.ID(*p.CycleID)
	}
	if p.EvaluationTypeID != nil {
		e.EvaluationTypeID = *p.EvaluationTypeID
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.CareerID != nil {
		e.CareerID = domain.ID(*p.CareerID)
	}
	if p.Active != nil {
		e.Active = *p.Active
	}
	return e
}

// Service manages scheduled evaluations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store, logger: slog.Default().With("component", "schedule")}
}

// Create validates e and persists it. The id of e is ignored.
func (s *Service) Create(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	e.ID = 0
	if err := e.Validate(); err != nil {
		return domain.ScheduledEvaluation{}, err
	}
	created, err := s.store.CreateEvaluation(ctx, e)
	if err != nil {
		return domain.ScheduledEvaluation{}, fmt.Errorf("create evaluation: %w", err)
	}
	s.logger.InfoContext(ctx, "evaluation scheduled",
		"id", created.ID, "site_id", created.SiteID,
		"start_date", created.StartDate, "start_time", created.StartTime)
	return created, nil
}

// Get returns evaluation id.
func (s *Service) Get(ctx context.Context, id int64) (domain.ScheduledEvaluation, error) {
	if id <= 0 {
		return domain.ScheduledEvaluation{}, invalidID()
	}
	e, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return domain.ScheduledEvaluation{}, fmt.Errorf("get evaluation %d: %w", id, err)
	}
	return e, nil
}

// Update loads evaluation id, applies p, and persists the merged record
// after validating it as a whole. An empty patch returns the current record.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (domain.ScheduledEvaluation, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.ScheduledEvaluation{}, err
	}
	if p.Empty() {
		return current, nil
	}

	merged := p.ApplyTo(current)
	if err := merged.Validate(); err != nil {
		return domain.ScheduledEvaluation{}, err
	}
	updated, err := s.store.UpdateEvaluation(ctx, merged)
	if err != nil {
		return domain.ScheduledEvaluation{}, fmt.Errorf("update evaluation %d: %w", id, err)
	}
	if current.StartDate != updated.StartDate || current.StartTime != updated.StartTime ||
		current.EndTime != updated.EndTime {
		s.logger.InfoContext(ctx, "evaluation rescheduled",
			"id", id,
			"start_date", updated.StartDate,
			"start_time", updated.StartTime,
			"end_time", updated.EndTime)
	}
	return updated, nil
}

// Delete removes evaluation id permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalidID()
	}
	if err := s.store.DeleteEvaluation(ctx, id); err != nil {
		return fmt.Errorf("delete evaluation %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "evaluation deleted", "id", id)
	return nil
}

// List returns the evaluations matching filter ordered by start date, start
// time, then id. A missing listing is an empty result.
func (s *Service) List(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ScheduledEvaluation, error) {
	all, err := s.store.ListEvaluations(ctx, filter)
	if all, err = domain.NotFoundAsEmpty(all, err); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	out := make([]domain.ScheduledEvaluation, 0, len(all))
	for _, e := range all {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StartDate != b.StartDate {
			return a.StartDate < b.StartDate
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return out, nil
}

func invalidID() error {
	return domain.NewValidationError("scheduled_evaluation", domain.Issue{Field: "id", Message: "must be greater than 0"})
}
