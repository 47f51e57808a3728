// Package postgres implements the data service on PostgreSQL through gorm.
// The connection is opened with lib/pq and handed to gorm's postgres
// dialector. Empty listings report domain.ErrNotFound like the remote
// service does.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahrav/go-proctor/internal/domain"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// activeRegistrationIndex enforces one active registration per key.
const activeRegistrationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_active_registration
	ON evaluation_registrations (site_id, cycle_id, student_id) WHERE active`

// Store is a PostgreSQL-backed data service.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *slog.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &Store{
		db:     db,
		sqlDB:  sqlDB,
		logger: slog.Default().With("component", "postgres-store"),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.sqlDB.Close() }

// DB exposes the gorm handle for seeding and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table and the partial index guarding
// active registrations.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(tables()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(activeRegistrationIndex).Error; err != nil {
		return fmt.Errorf("create active registration index: %w", err)
	}
	s.logger.InfoContext(ctx, "database migrated")
	return nil
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
}

func emptyListing(entity string) error {
	return fmt.Errorf("no %s: %w", entity, domain.ErrNotFound)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// list runs q into rows and converts them, reporting an empty result as
// domain.ErrNotFound.
func list[R any, T any](q *gorm.DB, entity string, conv func(R) T) ([]T, error) {
	var rows []R
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	if len(rows) == 0 {
		return nil, emptyListing(entity)
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = conv(r)
	}
	return out, nil
}

// first loads the row with id.
func first[R any](ctx context.Context, db *gorm.DB, entity string, id int64) (R, error) {
	var row R
	err := db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, notFound(entity, id)
	}
	if err != nil {
		return row, fmt.Errorf("get %s %d: %w", entity, id, err)
	}
	return row, nil
}

// save updates every column of row, failing with domain.ErrNotFound when no
// row has its id.
func save[R any](ctx context.Context, db *gorm.DB, entity string, id int64, row *R) error {
	res := db.WithContext(ctx).Model(row).Where("id = ?", id).Select("*").Omit("created_at").Updates(row)
	if res.Error != nil {
		return fmt.Errorf("update %s %d: %w", entity, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(entity, id)
	}
	return nil
}

// ListEvaluations implements schedule.Store.
func (s *Store) ListEvaluations(ctx context.Context, f domain.EvaluationFilter) ([]domain.ScheduledEvaluation, error) {
	q := s.db.WithContext(ctx).Order("id")
	if f.SiteID > 0 {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.CycleID > 0 {
		q = q.Where("cycle_id = ?", f.CycleID)
	}
	if f.ActiveOnly {
		q = q.Where("active")
	}
	return list(q, "evaluations", evaluationRow.domain)
}

// GetEvaluation implements schedule.Store.
func (s *Store) GetEvaluation(ctx context.Context, id int64) (domain.ScheduledEvaluation, error) {
	row, err := first[evaluationRow](ctx, s.db, "evaluation", id)
	if err != nil {
		return domain.ScheduledEvaluation{}, err
	}
	return row.domain(), nil
}

// CreateEvaluation implements schedule.Store.
func (s *Store) CreateEvaluation(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	row := evaluationToRow(e)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.ScheduledEvaluation{}, fmt.Errorf("create evaluation: %w", err)
	}
	return row.domain(), nil
}

// UpdateEvaluation implements schedule.Store.
func (s *Store) UpdateEvaluation(ctx context.Context, e domain.ScheduledEvaluation) (domain.ScheduledEvaluation, error) {
	row := evaluationToRow(e)
	if err := save(ctx, s.db, "evaluation", e.ID, &row); err != nil {
		return domain.ScheduledEvaluation{}, err
	}
	return row.domain(), nil
}

// DeleteEvaluation implements schedule.Store.
func (s *Store) DeleteEvaluation(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&evaluationRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete evaluation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("evaluation", id)
	}
	return nil
}

// ListSectionAssignments implements section.Store.
func (s *Store) ListSectionAssignments(ctx context.Context, evaluationID int64) ([]domain.SectionAssignment, error) {
	q := s.db.WithContext(ctx).Where("scheduled_evaluation_id = ?", evaluationID).Order("id")
	return list(q, "section assignments", assignmentRow.domain)
}

// CreateSectionAssignment implements section.Store. A second row for the
// same evaluation and section cycle is a conflict.
func (s *Store) CreateSectionAssignment(ctx context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	row := assignmentToRow(a)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.SectionAssignment{}, fmt.Errorf("section assignment for cycle %d: %w", a.SectionCycleID, domain.ErrConflict)
		}
		return domain.SectionAssignment{}, fmt.Errorf("create section assignment: %w", err)
	}
	return row.domain(), nil
}

// UpdateSectionAssignment implements section.Store.
func (s *Store) UpdateSectionAssignment(ctx context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	row := assignmentToRow(a)
	if err := save(ctx, s.db, "section assignment", a.ID, &row); err != nil {
		return domain.SectionAssignment{}, err
	}
	return row.domain(), nil
}

// ListScoreBands implements scoreband.Store.
func (s *Store) ListScoreBands(ctx context.Context, evaluationID int64) ([]domain.ScoreBandDetail, error) {
	q := s.db.WithContext(ctx).Where("scheduled_evaluation_id = ?", evaluationID).Order("id")
	return list(q, "score bands", scoreBandRow.domain)
}

// GetScoreBand returns band id.
func (s *Store) GetScoreBand(ctx context.Context, id int64) (domain.ScoreBandDetail, error) {
	row, err := first[scoreBandRow](ctx, s.db, "score band", id)
	if err != nil {
		return domain.ScoreBandDetail{}, err
	}
	return row.domain(), nil
}

// CreateScoreBand implements scoreband.Store.
func (s *Store) CreateScoreBand(ctx context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	row := scoreBandToRow(d)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.ScoreBandDetail{}, fmt.Errorf("create score band: %w", err)
	}
	return row.domain(), nil
}

// UpdateScoreBand implements scoreband.Store.
func (s *Store) UpdateScoreBand(ctx context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	row := scoreBandToRow(d)
	if err := save(ctx, s.db, "score band", d.ID, &row); err != nil {
		return domain.ScoreBandDetail{}, err
	}
	return row.domain(), nil
}

// ListAnswerKeys implements answerkey.Store.
func (s *Store) ListAnswerKeys(ctx context.Context, detailID int64) ([]domain.AnswerKey, error) {
	q := s.db.WithContext(ctx).Where("score_band_detail_id = ?", detailID).Order("question_order, id")
	return list(q, "answer keys", answerKeyRow.domain)
}

// CreateAnswerKey implements answerkey.Store.
func (s *Store) CreateAnswerKey(ctx context.Context, k domain.AnswerKey) (domain.AnswerKey, error) {
	row := answerKeyToRow(k)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.AnswerKey{}, fmt.Errorf("create answer key: %w", err)
	}
	return row.domain(), nil
}

// UpdateAnswerKey implements answerkey.Store.
func (s *Store) UpdateAnswerKey(ctx context.Context, k domain.AnswerKey) (domain.AnswerKey, error) {
	row := answerKeyToRow(k)
	if err := save(ctx, s.db, "answer key", k.ID, &row); err != nil {
		return domain.AnswerKey{}, err
	}
	return row.domain(), nil
}

// DeleteAnswerKey implements answerkey.Store.
func (s *Store) DeleteAnswerKey(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&answerKeyRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete answer key %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("answer key", id)
	}
	return nil
}

// FindRegistrations implements registration.Store.
func (s *Store) FindRegistrations(ctx context.Context, key domain.RegistrationKey) ([]domain.EvaluationRegistration, error) {
	q := s.db.WithContext(ctx).
		Where("site_id = ? AND cycle_id = ? AND student_id = ?", key.SiteID, key.CycleID, key.StudentID).
		Order("id")
	return list(q, "registrations", registrationRow.domain)
}

// ListRegistrations returns the registrations of evaluationID.
func (s *Store) ListRegistrations(ctx context.Context, evaluationID int64) ([]domain.EvaluationRegistration, error) {
	q := s.db.WithContext(ctx).Where("scheduled_evaluation_id = ?", evaluationID).Order("id")
	return list(q, "registrations", registrationRow.domain)
}

// CreateRegistration implements registration.Store. The partial unique index
// rejects a second active registration for the same key; that failure is
// reported as domain.ErrDuplicateRegistration.
func (s *Store) CreateRegistration(ctx context.Context, r domain.EvaluationRegistration) (domain.EvaluationRegistration, error) {
	row := registrationToRow(r)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.EvaluationRegistration{}, fmt.Errorf("student %d: %w", r.StudentID, domain.ErrDuplicateRegistration)
		}
		return domain.EvaluationRegistration{}, fmt.Errorf("create registration: %w", err)
	}
	return row.domain(), nil
}

// ListEnrollments implements registration.Enrollments.
func (s *Store) ListEnrollments(ctx context.Context, scope domain.EnrollmentScope) ([]domain.Enrollment, error) {
	q := s.db.WithContext(ctx).Where("site_id = ? AND cycle_id = ?", scope.SiteID, scope.CycleID).Order("id")
	if scope.SectionID != nil {
		q = q.Where("section_id = ?", *scope.SectionID)
	}
	return list(q, "enrollments", enrollmentRow.domain)
}

// ListSites implements catalog.Source.
func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	return list(s.db.WithContext(ctx).Order("id"), "sites", func(r siteRow) domain.Site {
		return domain.Site{ID: r.ID, Name: r.Name}
	})
}

// ListCycles implements catalog.Source.
func (s *Store) ListCycles(ctx context.Context) ([]domain.Cycle, error) {
	return list(s.db.WithContext(ctx).Order("id"), "cycles", func(r cycleRow) domain.Cycle {
		return domain.Cycle{
			ID:              r.ID,
			Name:            r.Name,
			Active:          r.Active,
			EnrollmentOpen:  r.EnrollmentOpen,
			EnrollmentClose: r.EnrollmentClose,
		}
	})
}

// ListSections implements catalog.Source.
func (s *Store) ListSections(ctx context.Context) ([]domain.Section, error) {
	return list(s.db.WithContext(ctx).Order("id"), "sections", func(r sectionRow) domain.Section {
		return domain.Section{ID: r.ID, Name: r.Name}
	})
}

// ListCareers implements catalog.Source.
func (s *Store) ListCareers(ctx context.Context) ([]domain.Career, error) {
	return list(s.db.WithContext(ctx).Order("id"), "careers", func(r careerRow) domain.Career {
		return domain.Career{ID: r.ID, Name: r.Name}
	})
}

// ListSectionCycles implements catalog.Source. A zero cycleID lists all.
func (s *Store) ListSectionCycles(ctx context.Context, cycleID int64) ([]domain.SectionCycle, error) {
	q := s.db.WithContext(ctx).Order("id")
	if cycleID > 0 {
		q = q.Where("cycle_id = ?", cycleID)
	}
	return list(q, "section cycles", sectionCycleRow.domain)
}

// SectionCycle implements section.Lookup.
func (s *Store) SectionCycle(ctx context.Context, id int64) (domain.SectionCycle, error) {
	row, err := first[sectionCycleRow](ctx, s.db, "section cycle", id)
	if err != nil {
		return domain.SectionCycle{}, err
	}
	return row.domain(), nil
}
