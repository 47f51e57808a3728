// Package scoreband validates, stores, and queries the score bands of a
// scheduled evaluation. A band maps a contiguous range of question orders to
// the points awarded for correct, incorrect, and blank answers.
package scoreband

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/numeric"
)

// Store is the persistence surface needed by Set.
type Store interface {
	// ListScoreBands may return bands of other evaluations; Set filters them.
	ListScoreBands(ctx context.Context, evaluationID int64) ([]domain.ScoreBandDetail, error)
	CreateScoreBand(ctx context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error)
	UpdateScoreBand(ctx context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error)
}

// Input is a score band as entered by a user. The numeric fields accept
// anything numeric.Parse accepts, typically form text such as "1,5".
type Input struct {
	ScheduledEvaluationID int64  `json:"scheduled_evaluation_id"`
	SectionID             *int64 `json:"section_id"`
	RangeStart            any    `json:"range_start"`
	RangeFin              any    `json:"range_fin"`
	CorrectValue          any    `json:"correct_value"`
	IncorrectValue        any    `json:"incorrect_value"`
	BlankValue            any    `json:"blank_value"`
	Note                  string `json:"note"`
	Active                *bool  `json:"active"`
}

// Resolve parses every numeric field and checks the range. All problems are
// reported together; the returned detail is only meaningful when err is nil.
func (in Input) Resolve() (domain.ScoreBandDetail, error) {
	verr := domain.NewValidationError("score_band")
	if in.ScheduledEvaluationID <= 0 {
		verr.Add(domain.Issue{Field: "scheduled_evaluation_id", Message: "is required"})
	}

	d := domain.ScoreBandDetail{
		ScheduledEvaluationID: in.ScheduledEvaluationID,
		SectionID:             domain.CloneID(in.SectionID),
		Note:                  in.Note,
		Active:                in.Active == nil || *in.Active,
	}
	fields := []struct {
		name string
		raw  any
		dst  *float64
	}{
		{"range_start", in.RangeStart, &d.RangeStart},
		{"range_fin", in.RangeFin, &d.RangeFin},
		{"correct_value", in.CorrectValue, &d.CorrectValue},
		{"incorrect_value", in.IncorrectValue, &d.IncorrectValue},
		{"blank_value", in.BlankValue, &d.BlankValue},
	}

	rangeOK := true
	for i, f := range fields {
		v, ok := numeric.Parse(f.raw)
		if !ok {
			verr.Add(domain.Issue{Field: f.name, Value: fmt.Sprint(f.raw), Message: "must be a finite number"})
			if i < 2 {
				rangeOK = false
			}
			continue
		}
		*f.dst = v
	}

	if rangeOK {
		for _, f := range fields[:2] {
			if math.Abs(*f.dst) > domain.MaxQuestionOrder {
				verr.Add(domain.Issue{
					Field:   f.name,
					Value:   numeric.Format(*f.dst),
					Message: fmt.Sprintf("must be between -%d and %d", domain.MaxQuestionOrder, domain.MaxQuestionOrder),
				})
				rangeOK = false
			}
		}
	}
	switch {
	case !rangeOK:
	case d.RangeFin < d.RangeStart:
		verr.Add(domain.Issue{
			Field:   "range_fin",
			Value:   numeric.Format(d.RangeFin),
			Message: fmt.Sprintf("must be greater than or equal to range_start %s", numeric.Format(d.RangeStart)),
		})
	case d.RangeFin-d.RangeStart > domain.MaxBandQuestions:
		verr.Add(domain.Issue{
			Field:   "range_fin",
			Value:   numeric.Format(d.RangeFin),
			Message: fmt.Sprintf("must be at most %d above range_start %s", domain.MaxBandQuestions, numeric.Format(d.RangeStart)),
		})
	}

	if err := verr.OrNil(); err != nil {
		return domain.ScoreBandDetail{}, err
	}
	return d, nil
}

// Set manages the score bands of evaluations.
type Set struct {
	store  Store
	logger *slog.Logger
}

// New creates a Set backed by store.
func New(store Store) *Set {
	return &Set{store: store, logger: slog.Default().With("component", "scoreband")}
}

// Create validates in and persists it as a new band.
// Nothing is sent to the store when validation fails.
func (s *Set) Create(ctx context.Context, in Input) (domain.ScoreBandDetail, error) {
	d, err := in.Resolve()
	if err != nil {
		return domain.ScoreBandDetail{}, err
	}
	created, err := s.store.CreateScoreBand(ctx, d)
	if err != nil {
		return domain.ScoreBandDetail{}, fmt.Errorf("create score band: %w", err)
	}
	s.logger.DebugContext(ctx, "score band created",
		"id", created.ID, "evaluation_id", created.ScheduledEvaluationID,
		"range_start", created.RangeStart, "range_fin", created.RangeFin)
	return created, nil
}

// Update validates in and replaces band id.
func (s *Set) Update(ctx context.Context, id int64, in Input) (domain.ScoreBandDetail, error) {
	if id <= 0 {
		return domain.ScoreBandDetail{}, domain.NewValidationError("score_band",
			domain.Issue{Field: "id", Message: "is required"})
	}
	d, err := in.Resolve()
	if err != nil {
		return domain.ScoreBandDetail{}, err
	}
	d.ID = id
	updated, err := s.store.UpdateScoreBand(ctx, d)
	if err != nil {
		return domain.ScoreBandDetail{}, fmt.Errorf("update score band %d: %w", id, err)
	}
	return updated, nil
}

// List returns the bands of evaluationID ordered by RangeStart. The store may
// return a superset, so bands of other evaluations are dropped. A missing
// listing is an empty result.
func (s *Set) List(ctx context.Context, evaluationID int64) ([]domain.ScoreBandDetail, error) {
	bands, err := s.store.ListScoreBands(ctx, evaluationID)
	if bands, err = domain.NotFoundAsEmpty(bands, err); err != nil {
		return nil, fmt.Errorf("list score bands for evaluation %d: %w", evaluationID, err)
	}
	return Filter(bands, evaluationID), nil
}

// Filter keeps the bands of evaluationID and sorts them by RangeStart, then id.
func Filter(bands []domain.ScoreBandDetail, evaluationID int64) []domain.ScoreBandDetail {
	out := make([]domain.ScoreBandDetail, 0, len(bands))
	for _, b := range bands {
		if b.ScheduledEvaluationID == evaluationID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RangeStart != out[j].RangeStart {
			return out[i].RangeStart < out[j].RangeStart
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ForQuestion lists the bands of evaluationID and returns the one covering
// question order for sectionID.
func (s *Set) ForQuestion(ctx context.Context, evaluationID int64, order int, sectionID *int64) (domain.ScoreBandDetail, error) {
	bands, err := s.List(ctx, evaluationID)
	if err != nil {
		return domain.ScoreBandDetail{}, err
	}
	band, ok := ForQuestion(bands, order, sectionID)
	if !ok {
		return domain.ScoreBandDetail{}, fmt.Errorf("score band for question %d: %w", order, domain.ErrNotFound)
	}
	return band, nil
}

// ForQuestion finds the active band covering question order for sectionID.
// A band scoped to the section wins over a global band; among equals the
// first in bands order wins.
func ForQuestion(bands []domain.ScoreBandDetail, order int, sectionID *int64) (domain.ScoreBandDetail, bool) {
	var global *domain.ScoreBandDetail
	for i := range bands {
		b := &bands[i]
		if !b.Active || !b.Covers(order) || !b.AppliesTo(sectionID) {
			continue
		}
		if b.SectionID != nil {
			return *b, true
		}
		if global == nil {
			global = b
		}
	}
	if global != nil {
		return *global, true
	}
	return domain.ScoreBandDetail{}, false
}

// GenerateDefaultKeys returns one placeholder draft per integer question order
// in the band, each answering "A" at version 1 and marked current. It is empty
// when the range is non-finite, inverted, or outside the limits of
// domain.ScoreBandDetail.Orders.
func GenerateDefaultKeys(d domain.ScoreBandDetail) []domain.AnswerKeyDraft {
	orders := d.Orders()
	drafts := make([]domain.AnswerKeyDraft, 0, len(orders))
	for _, o := range orders {
		current, active := true, true
		drafts = append(drafts, domain.AnswerKeyDraft{
			QuestionOrder: o,
			Answer:        "A",
			Version:       1,
			Current:       &current,
			Active:        &active,
		})
	}
	return drafts
}
