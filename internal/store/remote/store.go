package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ahrav/go-proctor/internal/domain"
)

func idPath(format string, id int64) string { return fmt.Sprintf(format, id) }

func query(pairs ...any) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case int64:
			if v > 0 {
				q.Set(key, strconv.FormatInt(v, 10))
			}
		case *int64:
			if v != nil {
				q.Set(key, strconv.FormatInt(*v, 10))
			}
		case bool:
			if v {
				q.Set(key, "true")
			}
		}
	}
	return q
}

// listing fetches path and decodes every record of the listing.
func listing[T any](ctx context.Context, c *Client, op, entity, path string, q url.Values, decode func(record) (T, error)) ([]T, error) {
	doc, err := c.call(ctx, op, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	recs, err := records(doc, entity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := decodeAll(recs, decode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// one sends a request whose response is a single record.
func one[T any](ctx context.Context, c *Client, op, entity, method, path string, body any, decode func(record) (T, error)) (T, error) {
	var zero T
	doc, err := c.call(ctx, op, method, path, nil, body)
	if err != nil {
		return zero, err
	}
	rec, err := single(doc, entity)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	v, err := decode(rec)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// ListEvaluations implements schedule.Store. The service may ignore some
// filters, so results are filtered again locally.
func (c *Client) ListEvaluations(ctx context.Context, f domain.EvaluationFilter) ([]domain.ScheduledEvaluation, error) {
	q := query("site_id", f.SiteID, "cycle_id", f.CycleID, "active_only", f.ActiveOnly)
	all, err := listing(ctx, c, "list evaluations", "scheduled_evaluation", "/evaluations", q, decodeEvaluation)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("list evaluations: %w", domain.ErrNotFound)
	}
	return out, nil
}

// GetEvaluation implements schedule.Store.
func (c *Client) GetEvaluation(ctx context.Context, id int64) (domain.ScheduledEvaluation, error) {
	return one(ctx, c, "get evaluation", "scheduled_evaluation", http.MethodGet, idPath("/evaluations/%d", id), nil, decodeEvaluation)
}

// CreateEvaluation implements schedule.Store.
func (c *Client) CreateEvaluation(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	return one(ctx, c, "create evaluation", "scheduled_evaluation", http.MethodPost, "/evaluations", e, decodeEvaluation)
}

// evaluationPatch sends every field of an evaluation. Cleared references
// are sent as 0 because the service leaves null fields unchanged.
type evaluationPatch struct {
	domain.ScheduledEvaluation
	CycleID  int64 `json:"cycle_id"`
	CareerID int64 `json:"career_id"`
}

// UpdateEvaluation implements schedule.Store.
func (c *Client) UpdateEvaluation(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	body := evaluationPatch{ScheduledEvaluation: e}
	if e.CycleID != nil {
		body.CycleID = *e.CycleID
	}
	if e.CareerID != nil {
		body.CareerID = *e.CareerID
	}
	return one(ctx, c, "update evaluation", "scheduled_evaluation", http.MethodPatch, idPath("/evaluations/%d", e.ID), body, decodeEvaluation)
}

// DeleteEvaluation implements schedule.Store.
func (c *Client) DeleteEvaluation(ctx context.Context, id int64) error {
	_, err := c.call(ctx, "delete evaluation", http.MethodDelete, idPath("/evaluations/%d", id), nil, nil)
	return err
}

// ListSectionAssignments implements section.Store.
func (c *Client) ListSectionAssignments(ctx context.Context, evaluationID int64) ([]domain.SectionAssignment, error) {
	return listing(ctx, c, "list section assignments", "section_assignment",
		idPath("/evaluations/%d/section-assignments", evaluationID), nil, decodeAssignment)
}

// CreateSectionAssignment implements section.Store.
func (c *Client) CreateSectionAssignment(ctx context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	return one(ctx, c, "create section assignment", "section_assignment", http.MethodPost, "/section-assignments", a, decodeAssignment)
}

// UpdateSectionAssignment implements section.Store.
func (c *Client) UpdateSectionAssignment(ctx context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	return one(ctx, c, "update section assignment", "section_assignment", http.MethodPut,
		idPath("/section-assignments/%d", a.ID), a, decodeAssignment)
}

// ListScoreBands implements scoreband.Store. The service may return bands
// of other evaluations; callers filter.
func (c *Client) ListScoreBands(ctx context.Context, evaluationID int64) ([]domain.ScoreBandDetail, error) {
	return listing(ctx, c, "list score bands", "score_band_detail",
		idPath("/evaluations/%d/score-bands", evaluationID), nil, decodeScoreBand)
}

// GetScoreBand returns band id.
func (c *Client) GetScoreBand(ctx context.Context, id int64) (domain.ScoreBandDetail, error) {
	return one(ctx, c, "get score band", "score_band_detail", http.MethodGet, idPath("/score-bands/%d", id), nil, decodeScoreBand)
}

// CreateScoreBand implements scoreband.Store.
func (c *Client) CreateScoreBand(ctx context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	return one(ctx, c, "create score band", "score_band_detail", http.MethodPost, "/score-bands", d, decodeScoreBand)
}

// UpdateScoreBand implements scoreband.Store.
func (c *Client) UpdateScoreBand(ctx context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	return one(ctx, c, "update score band", "score_band_detail", http.MethodPut, idPath("/score-bands/%d", d.ID), d, decodeScoreBand)
}

// ListAnswerKeys implements answerkey.Store.
func (c *Client) ListAnswerKeys(ctx context.Context, detailID int64) ([]domain.AnswerKey, error) {
	return listing(ctx, c, "list answer keys", "answer_key",
		idPath("/score-bands/%d/answer-keys", detailID), nil, decodeAnswerKey)
}

// CreateAnswerKey implements answerkey.Store.
func (c *Client) CreateAnswerKey(ctx context.Context, k domain.AnswerKey) (domain.AnswerKey, error) {
	return one(ctx, c, "create answer key", "answer_key", http.MethodPost, "/answer-keys", k, decodeAnswerKey)
}

// UpdateAnswerKey implements answerkey.Store.
func (c *Client) UpdateAnswerKey(ctx context.Context, k domain.AnswerKey) (domain.AnswerKey, error) {
	return one(ctx, c, "update answer key", "answer_key", http.MethodPut, idPath("/answer-keys/%d", k.ID), k, decodeAnswerKey)
}

// DeleteAnswerKey implements answerkey.Store.
func (c *Client) DeleteAnswerKey(ctx context.Context, id int64) error {
	_, err := c.call(ctx, "delete answer key", http.MethodDelete, idPath("/answer-keys/%d", id), nil, nil)
	return err
}

// FindRegistrations implements registration.Store.
func (c *Client) FindRegistrations(ctx context.Context, key domain.RegistrationKey) ([]domain.EvaluationRegistration, error) {
	q := query("site_id", key.SiteID, "cycle_id", key.CycleID, "student_id", key.StudentID)
	return listing(ctx, c, "find registrations", "evaluation_registration", "/registrations", q, decodeRegistration)
}

// ListRegistrations returns the registrations of evaluationID.
func (c *Client) ListRegistrations(ctx context.Context, evaluationID int64) ([]domain.EvaluationRegistration, error) {
	return listing(ctx, c, "list registrations", "evaluation_registration",
		idPath("/evaluations/%d/registrations", evaluationID), nil, decodeRegistration)
}

// CreateRegistration implements registration.Store. A 409 from the service
// is reported as domain.ErrDuplicateRegistration.
func (c *Client) CreateRegistration(ctx context.Context, r domain.EvaluationRegistration) (domain.EvaluationRegistration, error) {
	reg, err := one(ctx, c, "create registration", "evaluation_registration", http.MethodPost, "/registrations", r, decodeRegistration)
	var re *domain.RemoteError
	if errors.As(err, &re) && re.Status == http.StatusConflict {
		return domain.EvaluationRegistration{}, fmt.Errorf("student %d: %w: %w", r.StudentID, domain.ErrDuplicateRegistration, err)
	}
	return reg, err
}

// ListEnrollments implements registration.Enrollments.
func (c *Client) ListEnrollments(ctx context.Context, scope domain.EnrollmentScope) ([]domain.Enrollment, error) {
	q := query("site_id", scope.SiteID, "cycle_id", scope.CycleID, "section_id", scope.SectionID)
	return listing(ctx, c, "list enrollments", "enrollment", "/enrollments", q, decodeEnrollment)
}

// ListSites implements catalog.Source.
func (c *Client) ListSites(ctx context.Context) ([]domain.Site, error) {
	return listing(ctx, c, "list sites", "site", "/catalog/sites", nil, decodeSite)
}

// ListCycles implements catalog.Source.
func (c *Client) ListCycles(ctx context.Context) ([]domain.Cycle, error) {
	return listing(ctx, c, "list cycles", "cycle", "/catalog/cycles", nil, decodeCycle)
}

// ListSections implements catalog.Source.
func (c *Client) ListSections(ctx context.Context) ([]domain.Section, error) {
	return listing(ctx, c, "list sections", "section", "/catalog/sections", nil, decodeSection)
}

// ListCareers implements catalog.Source.
func (c *Client) ListCareers(ctx context.Context) ([]domain.Career, error) {
	return listing(ctx, c, "list careers", "career", "/catalog/careers", nil, decodeCareer)
}

// ListSectionCycles implements catalog.Source. A zero cycleID lists all.
func (c *Client) ListSectionCycles(ctx context.Context, cycleID int64) ([]domain.SectionCycle, error) {
	return listing(ctx, c, "list section cycles", "section_cycle", "/catalog/section-cycles",
		query("cycle_id", cycleID), decodeSectionCycle)
}

// SectionCycle implements section.Lookup.
func (c *Client) SectionCycle(ctx context.Context, id int64) (domain.SectionCycle, error) {
	return one(ctx, c, "get section cycle", "section_cycle", http.MethodGet,
		idPath("/catalog/section-cycles/%d", id), nil, decodeSectionCycle)
}
