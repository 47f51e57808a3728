//go:build integration
// +build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/registration"
	"github.com/ahrav/go-proctor/internal/section"
)

func setupStore(t *testing.T) *Store {
	ctx := context.Background()

	container, err := pgContainer.Run(ctx, "postgres:16-alpine",
		pgContainer.WithDatabase("proctor"),
		pgContainer.WithUsername("proctor"),
		pgContainer.WithPassword("proctor"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStore_EvaluationLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.ListEvaluations(ctx, domain.EvaluationFilter{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	created, err := s.CreateEvaluation(ctx, domain.ScheduledEvaluation{
		SiteID: 1, CycleID: domain.ID(2), EvaluationTypeID: 3, Name: "Midterm",
		StartDate: "2026-03-01", StartTime: "08:00", EndTime: "10:00", Active: true,
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	created.Name = "Midterm A"
	created.CareerID = nil
	_, err = s.UpdateEvaluation(ctx, created)
	require.NoError(t, err)

	got, err := s.GetEvaluation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Midterm A", got.Name)
	assert.Equal(t, int64(2), *got.CycleID)

	list, err := s.ListEvaluations(ctx, domain.EvaluationFilter{CycleID: 2, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteEvaluation(ctx, created.ID))
	require.ErrorIs(t, s.DeleteEvaluation(ctx, created.ID), domain.ErrNotFound)
	_, err = s.GetEvaluation(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.UpdateEvaluation(ctx, created)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ActiveRegistrationIndex(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	r := domain.EvaluationRegistration{ScheduledEvaluationID: 1, StudentID: 5, SiteID: 1, CycleID: 2, Active: true}

	_, err := s.CreateRegistration(ctx, r)
	require.NoError(t, err)

	r.ScheduledEvaluationID = 2
	_, err = s.CreateRegistration(ctx, r)
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	r.Active = false
	_, err = s.CreateRegistration(ctx, r)
	require.NoError(t, err)

	found, err := s.FindRegistrations(ctx, r.Key())
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestStore_SectionAssignmentConflict(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	a := domain.SectionAssignment{ScheduledEvaluationID: 1, SectionCycleID: 7, State: domain.StateActive}

	_, err := s.CreateSectionAssignment(ctx, a)
	require.NoError(t, err)
	_, err = s.CreateSectionAssignment(ctx, a)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestStore_ReconcileAndRegister(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.DB().Create(&[]sectionCycleRow{
		{ID: 1, CycleID: 2, SectionID: domain.ID(10), Name: "1A"},
		{ID: 2, CycleID: 2, SectionID: domain.ID(20), Name: "1B"},
	}).Error)
	require.NoError(t, s.DB().Create(&[]enrollmentRow{
		{StudentID: 1, SectionCycleID: 1, SiteID: 1, CycleID: 2, SectionID: domain.ID(10)},
		{StudentID: 2, SectionCycleID: 1, SiteID: 1, CycleID: 2, SectionID: domain.ID(10)},
		{StudentID: 2, SectionCycleID: 1, SiteID: 1, CycleID: 2, SectionID: domain.ID(10)},
	}).Error)

	res, err := section.NewReconciler(s, s).Reconcile(ctx, 9, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	res, err = section.NewReconciler(s, s).Reconcile(ctx, 9, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deactivated)

	target := registration.Target{EvaluationID: 9, SiteID: 1, CycleID: 2, SectionID: domain.ID(10)}
	summary, err := registration.NewRegistrar(s, s).RegisterSection(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, registration.Summary{Total: 2, Registered: 2}, summary)

	summary, err = registration.NewRegistrar(s, s).RegisterSection(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, registration.Summary{Total: 2, Duplicates: 2}, summary)
}

func TestStore_AnswerKeysOrderedByQuestion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for _, order := range []int{3, 1, 2} {
		_, err := s.CreateAnswerKey(ctx, domain.AnswerKey{
			ScheduledEvaluationID: 1, ScoreBandDetailID: 5, QuestionOrder: order, Answer: "A", Version: 1, Current: true, Active: true,
		})
		require.NoError(t, err)
	}

	keys, err := s.ListAnswerKeys(ctx, 5)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{keys[0].QuestionOrder, keys[1].QuestionOrder, keys[2].QuestionOrder})

	require.NoError(t, s.DeleteAnswerKey(ctx, keys[0].ID))
	require.ErrorIs(t, s.DeleteAnswerKey(ctx, keys[0].ID), domain.ErrNotFound)
}
