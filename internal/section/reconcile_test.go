package section

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-proctor/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	rows     map[int64]domain.SectionAssignment
	nextID   int64
	failFor  map[int64]error
	writes   atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newFakeStore(rows ...domain.SectionAssignment) *fakeStore {
	f := &fakeStore{rows: make(map[int64]domain.SectionAssignment), failFor: make(map[int64]error), nextID: 100}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeStore) ListSectionAssignments(_ context.Context, evaluationID int64) ([]domain.SectionAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SectionAssignment
	for _, r := range f.rows {
		if r.ScheduledEvaluationID == evaluationID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("list: %w", domain.ErrNotFound)
	}
	return out, nil
}

func (f *fakeStore) enter(sectionCycleID int64) error {
	f.writes.Add(1)
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failFor[sectionCycleID]
}

func (f *fakeStore) CreateSectionAssignment(_ context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	defer f.inFlight.Add(-1)
	if err := f.enter(a.SectionCycleID); err != nil {
		return domain.SectionAssignment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	f.rows[a.ID] = a
	return a, nil
}

func (f *fakeStore) UpdateSectionAssignment(_ context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error) {
	defer f.inFlight.Add(-1)
	if err := f.enter(a.SectionCycleID); err != nil {
		return domain.SectionAssignment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[a.ID] = a
	return a, nil
}

type fakeLookup map[int64]domain.SectionCycle

func (l fakeLookup) SectionCycle(_ context.Context, id int64) (domain.SectionCycle, error) {
	c, ok := l[id]
	if !ok {
		return domain.SectionCycle{}, fmt.Errorf("section cycle %d: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func assignment(id, sectionCycleID int64, sectionID *int64, state domain.AssignmentState) domain.SectionAssignment {
	return domain.SectionAssignment{ID: id, ScheduledEvaluationID: 1, SectionCycleID: sectionCycleID, SectionID: sectionID, State: state}
}

func TestPlan(t *testing.T) {
	idx := NewIndex([]domain.SectionCycle{
		{ID: 10, SectionID: domain.ID(100)},
		{ID: 11, SectionID: domain.ID(110)},
		{ID: 12, SectionID: domain.ID(120)},
		{ID: 13, SectionID: domain.ID(131)},
	})
	existing := []domain.SectionAssignment{
		assignment(1, 10, domain.ID(100), domain.StateActive),
		assignment(2, 11, domain.ID(110), domain.StateInactive),
		assignment(3, 13, domain.ID(130), domain.StateActive),
		assignment(4, 14, nil, domain.StateActive),
	}

	tests := []struct {
		name     string
		selected []int64
		want     map[int64]domain.Action
	}{
		{
			name:     "create new and leave inactive alone",
			selected: []int64{10, 12, 13, 14},
			want:     map[int64]domain.Action{12: domain.ActionCreate, 13: domain.ActionReactivate},
		},
		{
			name:     "reactivate inactive",
			selected: []int64{10, 11, 13, 14},
			want:     map[int64]domain.Action{11: domain.ActionReactivate, 13: domain.ActionReactivate},
		},
		{
			name:     "deselect everything",
			selected: nil,
			want:     map[int64]domain.Action{10: domain.ActionDeactivate, 13: domain.ActionDeactivate, 14: domain.ActionDeactivate},
		},
		{
			name:     "duplicate selections collapse",
			selected: []int64{12, 12, 10, 13, 14},
			want:     map[int64]domain.Action{12: domain.ActionCreate, 13: domain.ActionReactivate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := Plan(1, tt.selected, existing, idx)
			got := make(map[int64]domain.Action, len(ops))
			for i, op := range ops {
				got[op.Assignment.SectionCycleID] = op.Action
				if i > 0 {
					assert.Less(t, ops[i-1].Assignment.SectionCycleID, op.Assignment.SectionCycleID)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_ResolvesSection(t *testing.T) {
	idx := NewIndex([]domain.SectionCycle{{ID: 12, SectionID: domain.ID(120)}})
	existing := []domain.SectionAssignment{assignment(1, 10, domain.ID(100), domain.StateInactive)}

	ops := Plan(1, []int64{10, 12, 15}, existing, idx)
	require.Len(t, ops, 3)

	assert.Equal(t, domain.ActionReactivate, ops[0].Action)
	assert.Equal(t, int64(100), *ops[0].Assignment.SectionID, "unknown cycle keeps its section")
	assert.Equal(t, int64(1), ops[0].Assignment.ID)

	assert.Equal(t, domain.ActionCreate, ops[1].Action)
	assert.Equal(t, int64(120), *ops[1].Assignment.SectionID)
	assert.True(t, ops[1].Assignment.Active())

	assert.Nil(t, ops[2].Assignment.SectionID, "unknown cycle is created without section")
}

func TestReconciler_Reconcile(t *testing.T) {
	// Existing {10: active, 11: inactive}, selected {10, 12}: only 12 is created.
	store := newFakeStore(
		assignment(1, 10, nil, domain.StateActive),
		assignment(2, 11, nil, domain.StateInactive),
	)
	r := NewReconciler(store, nil)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, 1, []int64{10, 12})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Zero(t, res.Reactivated)
	assert.Zero(t, res.Deactivated)
	assert.Equal(t, int64(1), store.writes.Load())

	require.Len(t, res.Assignments, 3)
	assert.Equal(t, []int64{10, 11, 12}, []int64{
		res.Assignments[0].SectionCycleID, res.Assignments[1].SectionCycleID, res.Assignments[2].SectionCycleID,
	})

	again, err := r.Reconcile(ctx, 1, []int64{10, 12})
	require.NoError(t, err)
	assert.Zero(t, again.Created+again.Reactivated+again.Deactivated)
	assert.Equal(t, int64(1), store.writes.Load(), "second pass issues no operations")
}

func TestReconciler_ReconcileEmptyListing(t *testing.T) {
	store := newFakeStore()
	lookup := fakeLookup{5: {ID: 5, SectionID: domain.ID(50)}}

	res, err := NewReconciler(store, lookup).Reconcile(context.Background(), 1, []int64{5})
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, int64(50), *res.Assignments[0].SectionID)
}

func TestReconciler_PartialFailure(t *testing.T) {
	store := newFakeStore(assignment(1, 10, nil, domain.StateActive))
	boom := &domain.RemoteError{Op: "create section assignment", Status: 500, Message: "boom"}
	store.failFor[12] = boom

	res, err := NewReconciler(store, nil).Reconcile(context.Background(), 1, []int64{11, 12})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartial)
	assert.ErrorIs(t, err, domain.ErrRemote)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Deactivated)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, int64(12), res.Failures[0].Operation.Assignment.SectionCycleID)

	// Retrying the same selection only issues the failed create.
	delete(store.failFor, 12)
	before := store.writes.Load()
	retry, err := NewReconciler(store, nil).Reconcile(context.Background(), 1, []int64{11, 12})
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Created)
	assert.Equal(t, before+1, store.writes.Load())
}

func TestReconciler_LookupFailureStopsBeforeWrites(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, failingLookup{})

	_, err := r.Reconcile(context.Background(), 1, []int64{1})
	require.Error(t, err)
	assert.Zero(t, store.writes.Load())
}

type failingLookup struct{}

func (failingLookup) SectionCycle(context.Context, int64) (domain.SectionCycle, error) {
	return domain.SectionCycle{}, errors.New("catalog unavailable")
}

func TestReconciler_ApplyBoundsConcurrency(t *testing.T) {
	store := newFakeStore()
	selected := make([]int64, 64)
	for i := range selected {
		selected[i] = int64(i + 1)
	}

	r := NewReconciler(store, nil).WithConcurrency(4)
	res, err := r.Reconcile(context.Background(), 1, selected)
	require.NoError(t, err)
	assert.Equal(t, 64, res.Created)
	assert.Len(t, res.Assignments, 64)
	assert.LessOrEqual(t, store.peak.Load(), int64(4))
}

func TestReconciler_ApplyCancelled(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ops := Plan(1, []int64{1, 2}, nil, nil)
	res := NewReconciler(store, nil).Apply(ctx, ops, nil)
	assert.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Err(), context.Canceled)
	assert.Zero(t, store.writes.Load())
}
