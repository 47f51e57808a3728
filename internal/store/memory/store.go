// Package memory implements the data service in process memory. It backs
// tests and local development and mirrors the remote service's contract:
// empty listings report domain.ErrNotFound.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/ahrav/go-proctor/internal/domain"
)

// Data is the full content of a Store, used to seed it.
type Data struct {
	Evaluations   []domain.ScheduledEvaluation    `json:"evaluations"`
	Assignments   []domain.SectionAssignment      `json:"section_assignments"`
	ScoreBands    []domain.ScoreBandDetail        `json:"score_bands"`
	AnswerKeys    []domain.AnswerKey              `json:"answer_keys"`
	Registrations []domain.EvaluationRegistration `json:"registrations"`
	Enrollments   []domain.Enrollment             `json:"enrollments"`
	Sites         []domain.Site                   `json:"sites"`
	Cycles        []domain.Cycle                  `json:"cycles"`
	Sections      []domain.Section                `json:"sections"`
	Careers       []domain.Career                 `json:"careers"`
	SectionCycles []domain.SectionCycle           `json:"section_cycles"`
}

// Store is a concurrency-safe in-memory data service.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	evaluations   map[int64]domain.ScheduledEvaluation
	assignments   map[int64]domain.SectionAssignment
	scoreBands    map[int64]domain.ScoreBandDetail
	answerKeys    map[int64]domain.AnswerKey
	registrations map[int64]domain.EvaluationRegistration

	enrollments   []domain.Enrollment
	sites         []domain.Site
	cycles        []domain.Cycle
	sections      []domain.Section
	careers       []domain.Career
	sectionCycles map[int64]domain.SectionCycle
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		evaluations:   make(map[int64]domain.ScheduledEvaluation),
		assignments:   make(map[int64]domain.SectionAssignment),
		scoreBands:    make(map[int64]domain.ScoreBandDetail),
		answerKeys:    make(map[int64]domain.AnswerKey),
		registrations: make(map[int64]domain.EvaluationRegistration),
		sectionCycles: make(map[int64]domain.SectionCycle),
	}
}

// Seed adds d to the store. Records keep their ids; records without one are
// numbered like created records. Ids assigned later start after the highest
// seeded id.
func (s *Store) Seed(d Data) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seedRecords(s, s.evaluations, d.Evaluations, func(e *domain.ScheduledEvaluation) *int64 { return &e.ID })
	seedRecords(s, s.assignments, d.Assignments, func(a *domain.SectionAssignment) *int64 { return &a.ID })
	seedRecords(s, s.scoreBands, d.ScoreBands, func(b *domain.ScoreBandDetail) *int64 { return &b.ID })
	seedRecords(s, s.answerKeys, d.AnswerKeys, func(k *domain.AnswerKey) *int64 { return &k.ID })
	seedRecords(s, s.registrations, d.Registrations, func(r *domain.EvaluationRegistration) *int64 { return &r.ID })
	for _, sc := range d.SectionCycles {
		s.sectionCycles[sc.ID] = sc
	}
	s.enrollments = append(s.enrollments, d.Enrollments...)
	s.sites = append(s.sites, d.Sites...)
	s.cycles = append(s.cycles, d.Cycles...)
	s.sections = append(s.sections, d.Sections...)
	s.careers = append(s.careers, d.Careers...)
}

// SeedJSON decodes Data from r and seeds the store with it.
func (s *Store) SeedJSON(r io.Reader) error {
	var d Data
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return fmt.Errorf("decode seed data: %w", err)
	}
	s.Seed(d)
	return nil
}

// reserve keeps nextID ahead of id. Callers hold mu.
func (s *Store) reserve(id int64) int64 {
	s.nextID = max(s.nextID, id)
	return id
}

// seedRecords stores recs in m keyed by id. Explicit ids are reserved before
// records with a zero id are numbered, so the two never collide. Callers hold mu.
func seedRecords[T any](s *Store, m map[int64]T, recs []T, id func(*T) *int64) {
	for i := range recs {
		s.reserve(*id(&recs[i]))
	}
	for _, r := range recs {
		p := id(&r)
		if *p == 0 {
			*p = s.newID()
		}
		m[*p] = r
	}
}

// newID returns the next id. Callers hold mu.
func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
}

func emptyListing(entity string) error {
	return fmt.Errorf("no %s: %w", entity, domain.ErrNotFound)
}

// sortedValues returns the values of m ordered by cmpFn.
func sortedValues[T any](m map[int64]T, keep func(T) bool, cmpFn func(a, b T) int) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, cmpFn)
	return out
}

// ListEvaluations implements schedule.Store.
func (s *Store) ListEvaluations(_ context.Context, f domain.EvaluationFilter) ([]domain.ScheduledEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.evaluations, f.Matches, func(a, b domain.ScheduledEvaluation) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if len(out) == 0 {
		return nil, emptyListing("evaluations")
	}
	return out, nil
}

// GetEvaluation implements schedule.Store.
func (s *Store) GetEvaluation(_ context.Context, id int64) (domain.ScheduledEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.evaluations[id]
	if !ok {
		return domain.ScheduledEvaluation{}, notFound("evaluation", id)
	}
	return e, nil
}

// CreateEvaluation implements schedule.Store.
func (s *Store) CreateEvaluation(_ context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.newID()
	s.evaluations[e.ID] = e
	return e, nil
}

// UpdateEvaluation implements schedule.Store.
func (s *Store) UpdateEvaluation(_ context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.evaluations[e.ID]; !ok {
		return domain.ScheduledEvaluation{}, notFound("evaluation", e.ID)
	}
	s.evaluations[e.ID] = e
	return e, nil
}

// DeleteEvaluation implements schedule.Store.
func (s *Store) DeleteEvaluation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.evaluations[id]; !ok {
		return notFound("evaluation", id)
	}
	delete(s.evaluations, id)
	return nil
}

// ListSectionAssignments implements section.Store.
func (s *Store) ListSectionAssignments(_ context.Context, evaluationID int64) ([]domain.SectionAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.assignments,
		func(a domain.SectionAssignment) bool { return a.ScheduledEvaluationID == evaluationID },
		func(a, b domain.SectionAssignment) int { return cmp.Compare(a.ID, b.ID) })
	if len(out) == 0 {
		return nil, emptyListing("section assignments")
	}
	return out, nil
}

// CreateSectionAssignment implements section.Store. Creating a second row
// for the same evaluation and section cycle is a conflict.
func (s *Store) CreateSectionAssignment(_ context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assignments {
		if existing.ScheduledEvaluationID == a.ScheduledEvaluationID && existing.SectionCycleID == a.SectionCycleID {
			return domain.SectionAssignment{}, fmt.Errorf("section assignment for cycle %d: %w", a.SectionCycleID, domain.ErrConflict)
		}
	}
	a.ID = s.newID()
	s.assignments[a.ID] = a
	return a, nil
}

// UpdateSectionAssignment implements section.Store.
func (s *Store) UpdateSectionAssignment(_ context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[a.ID]; !ok {
		return domain.SectionAssignment{}, notFound("section assignment", a.ID)
	}
	s.assignments[a.ID] = a
	return a, nil
}

// ListScoreBands implements scoreband.Store.
func (s *Store) ListScoreBands(_ context.Context, evaluationID int64) ([]domain.ScoreBandDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.scoreBands,
		func(b domain.ScoreBandDetail) bool { return b.ScheduledEvaluationID == evaluationID },
		func(a, b domain.ScoreBandDetail) int { return cmp.Compare(a.ID, b.ID) })
	if len(out) == 0 {
		return nil, emptyListing("score bands")
	}
	return out, nil
}

// GetScoreBand returns band id.
func (s *Store) GetScoreBand(_ context.Context, id int64) (domain.ScoreBandDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.scoreBands[id]
	if !ok {
		return domain.ScoreBandDetail{}, notFound("score band", id)
	}
	return b, nil
}

// CreateScoreBand implements scoreband.Store.
func (s *Store) CreateScoreBand(_ context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.newID()
	s.scoreBands[d.ID] = d
	return d, nil
}

// UpdateScoreBand implements scoreband.Store.
func (s *Store) UpdateScoreBand(_ context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scoreBands[d.ID]; !ok {
		return domain.ScoreBandDetail{}, notFound("score band", d.ID)
	}
	s.scoreBands[d.ID] = d
	return d, nil
}

// ListAnswerKeys implements answerkey.Store.
func (s *Store) ListAnswerKeys(_ context.Context, detailID int64) ([]domain.AnswerKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.answerKeys,
		func(k domain.AnswerKey) bool { return k.ScoreBandDetailID == detailID },
		func(a, b domain.AnswerKey) int {
			return cmp.Or(cmp.Compare(a.QuestionOrder, b.QuestionOrder), cmp.Compare(a.ID, b.ID))
		})
	if len(out) == 0 {
		return nil, emptyListing("answer keys")
	}
	return out, nil
}

// CreateAnswerKey implements answerkey.Store.
func (s *Store) CreateAnswerKey(_ context.Context, k domain.AnswerKey) (domain.AnswerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k.ID = s.newID()
	s.answerKeys[k.ID] = k
	return k, nil
}

// UpdateAnswerKey implements answerkey.Store.
func (s *Store) UpdateAnswerKey(_ context.Context, k domain.AnswerKey) (domain.AnswerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.answerKeys[k.ID]; !ok {
		return domain.AnswerKey{}, notFound("answer key", k.ID)
	}
	s.answerKeys[k.ID] = k
	return k, nil
}

// DeleteAnswerKey implements answerkey.Store.
func (s *Store) DeleteAnswerKey(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.answerKeys[id]; !ok {
		return notFound("answer key", id)
	}
	delete(s.answerKeys, id)
	return nil
}

// FindRegistrations implements registration.Store.
func (s *Store) FindRegistrations(_ context.Context, key domain.RegistrationKey) ([]domain.EvaluationRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.registrations,
		func(r domain.EvaluationRegistration) bool { return r.Key() == key },
		func(a, b domain.EvaluationRegistration) int { return cmp.Compare(a.ID, b.ID) })
	if len(out) == 0 {
		return nil, emptyListing("registrations")
	}
	return out, nil
}

// ListRegistrations returns the registrations of evaluationID.
func (s *Store) ListRegistrations(_ context.Context, evaluationID int64) ([]domain.EvaluationRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.registrations,
		func(r domain.EvaluationRegistration) bool { return r.ScheduledEvaluationID == evaluationID },
		func(a, b domain.EvaluationRegistration) int { return cmp.Compare(a.ID, b.ID) })
	if len(out) == 0 {
		return nil, emptyListing("registrations")
	}
	return out, nil
}

// CreateRegistration implements registration.Store. A second active
// registration for the same site, cycle, and student is rejected with
// domain.ErrDuplicateRegistration.
func (s *Store) CreateRegistration(_ context.Context, r domain.EvaluationRegistration) (domain.EvaluationRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Active {
		for _, existing := range s.registrations {
			if existing.Active && existing.Key() == r.Key() {
				return domain.EvaluationRegistration{}, fmt.Errorf("student %d: %w", r.StudentID, domain.ErrDuplicateRegistration)
			}
		}
	}
	r.ID = s.newID()
	s.registrations[r.ID] = r
	return r, nil
}

// ListEnrollments implements registration.Enrollments.
func (s *Store) ListEnrollments(_ context.Context, scope domain.EnrollmentScope) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Enrollment
	for _, e := range s.enrollments {
		if scope.Matches(e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, emptyListing("enrollments")
	}
	return out, nil
}

// ListSites implements catalog.Source.
func (s *Store) ListSites(context.Context) ([]domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listing("sites", s.sites)
}

// ListCycles implements catalog.Source.
func (s *Store) ListCycles(context.Context) ([]domain.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listing("cycles", s.cycles)
}

// ListSections implements catalog.Source.
func (s *Store) ListSections(context.Context) ([]domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listing("sections", s.sections)
}

// ListCareers implements catalog.Source.
func (s *Store) ListCareers(context.Context) ([]domain.Career, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listing("careers", s.careers)
}

// ListSectionCycles implements catalog.Source. A zero cycleID lists all.
func (s *Store) ListSectionCycles(_ context.Context, cycleID int64) ([]domain.SectionCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := sortedValues(s.sectionCycles,
		func(sc domain.SectionCycle) bool { return cycleID == 0 || sc.CycleID == cycleID },
		func(a, b domain.SectionCycle) int { return cmp.Compare(a.ID, b.ID) })
	if len(out) == 0 {
		return nil, emptyListing("section cycles")
	}
	return out, nil
}

// SectionCycle implements section.Lookup.
func (s *Store) SectionCycle(_ context.Context, id int64) (domain.SectionCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.sectionCycles[id]
	if !ok {
		return domain.SectionCycle{}, notFound("section cycle", id)
	}
	return sc, nil
}

func listing[T any](entity string, items []T) ([]T, error) {
	if len(items) == 0 {
		return nil, emptyListing(entity)
	}
	return slices.Clone(items), nil
}
