// Package section keeps the section assignments of a scheduled evaluation in
// line with the set of section cycles a user selected. Removed sections are
// deactivated rather than deleted so registrations made against them survive.
package section

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ahrav/go-proctor/internal/domain"
)

// DefaultConcurrency bounds the store calls issued in parallel by Apply.
const DefaultConcurrency = 8

// ErrPartial indicates that some operations of a reconciliation failed while
// others were committed.
var ErrPartial = errors.New("reconciliation partially applied")

// Store is the persistence surface needed by Reconciler.
type Store interface {
	ListSectionAssignments(ctx context.Context, evaluationID int64) ([]domain.SectionAssignment, error)
	CreateSectionAssignment(ctx context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error)
	UpdateSectionAssignment(ctx context.Context, a domain.SectionAssignment) (domain.SectionAssignment, error)
}

// Lookup resolves section cycle metadata. Implementations return an error
// wrapping domain.ErrNotFound for unknown ids.
type Lookup interface {
	SectionCycle(ctx context.Context, id int64) (domain.SectionCycle, error)
}

// Index is section cycle metadata keyed by section cycle id.
type Index map[int64]domain.SectionCycle

// NewIndex indexes cycles by id.
func NewIndex(cycles []domain.SectionCycle) Index {
	idx := make(Index, len(cycles))
	for _, c := range cycles {
		idx[c.ID] = c
	}
	return idx
}

// SectionID returns the section of section cycle id, or nil when the cycle is
// unknown or has no concrete section.
func (idx Index) SectionID(id int64) *int64 {
	c, ok := idx[id]
	if !ok {
		return nil
	}
	return domain.CloneID(c.SectionID)
}

// Operation is one store call needed to reach the selected set. Assignment
// holds the record as it should be written.
type Operation struct {
	Action     domain.Action            `json:"action"`
	Assignment domain.SectionAssignment `json:"assignment"`
}

// Plan computes the operations that bring existing in line with selected,
// ordered by section cycle id. Section cycles missing from idx keep the
// section id they already have, or none when created. Selecting an active
// assignment whose section is unchanged yields no operation, so planning
// against the result of a successful Apply returns nothing.
func Plan(evaluationID int64, selected []int64, existing []domain.SectionAssignment, idx Index) []Operation {
	current := bySectionCycle(existing)
	wanted := make(map[int64]bool, len(selected))
	for _, id := range selected {
		wanted[id] = true
	}

	var ops []Operation
	for id := range wanted {
		sectionID := idx.SectionID(id)
		a, ok := current[id]
		state := domain.StateAbsent
		if ok {
			state = a.State
			if _, known := idx[id]; !known {
				sectionID = domain.CloneID(a.SectionID)
			}
		}
		action := domain.Decide(state, true, ok && !domain.SameID(a.SectionID, sectionID))

		switch action {
		case domain.ActionCreate:
			ops = append(ops, Operation{Action: action, Assignment: domain.SectionAssignment{
				ScheduledEvaluationID: evaluationID,
				SectionCycleID:        id,
				SectionID:             sectionID,
				State:                 domain.StateActive,
			}})
		case domain.ActionReactivate:
			a.SectionID = sectionID
			a.State = domain.StateActive
			ops = append(ops, Operation{Action: action, Assignment: a})
		}
	}

	for id, a := range current {
		if wanted[id] {
			continue
		}
		if domain.Decide(a.State, false, false) == domain.ActionDeactivate {
			a.State = domain.StateInactive
			ops = append(ops, Operation{Action: domain.ActionDeactivate, Assignment: a})
		}
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Assignment.SectionCycleID < ops[j].Assignment.SectionCycleID
	})
	return ops
}

// bySectionCycle keys assignments by section cycle id. When legacy data holds
// more than one row for a section cycle, the active row with the lowest id wins.
func bySectionCycle(existing []domain.SectionAssignment) map[int64]domain.SectionAssignment {
	out := make(map[int64]domain.SectionAssignment, len(existing))
	for _, a := range existing {
		prev, ok := out[a.SectionCycleID]
		if !ok || better(a, prev) {
			out[a.SectionCycleID] = a
		}
	}
	return out
}

func better(a, b domain.SectionAssignment) bool {
	if a.Active() != b.Active() {
		return a.Active()
	}
	return a.ID < b.ID
}

// Failure is an operation the store rejected.
type Failure struct {
	Operation Operation `json:"operation"`
	Error     string    `json:"error"`
	err       error
}

// Result is the outcome of applying a plan.
type Result struct {
	// Assignments is the new snapshot: existing rows overlaid with every
	// successful write, de-duplicated by id and ordered by section cycle id.
	Assignments []domain.SectionAssignment `json:"assignments"`
	Created     int                        `json:"created"`
	Reactivated int                        `json:"reactivated"`
	Deactivated int                        `json:"deactivated"`
	Failures    []Failure                  `json:"failures,omitempty"`
}

// Err returns nil when every operation succeeded, or an error wrapping
// ErrPartial and each failure cause.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s section cycle %d: %w", f.Operation.Action, f.Operation.Assignment.SectionCycleID, f.err)
	}
	return fmt.Errorf("%w: %d operations failed: %w", ErrPartial, len(errs), errors.Join(errs...))
}

// Reconciler synchronizes section assignments through a Store.
type Reconciler struct {
	store       Store
	lookup      Lookup
	concurrency int
	logger      *slog.Logger
}

// NewReconciler creates a Reconciler. lookup may be nil, in which case new
// assignments carry no section id.
func NewReconciler(store Store, lookup Lookup) *Reconciler {
	return &Reconciler{
		store:       store,
		lookup:      lookup,
		concurrency: DefaultConcurrency,
		logger:      slog.Default().With("component", "section_reconciler"),
	}
}

// WithConcurrency sets the number of parallel store calls issued by Apply.
func (r *Reconciler) WithConcurrency(n int) *Reconciler {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// List returns the assignments of evaluationID; a missing listing is empty.
func (r *Reconciler) List(ctx context.Context, evaluationID int64) ([]domain.SectionAssignment, error) {
	existing, err := r.store.ListSectionAssignments(ctx, evaluationID)
	if existing, err = domain.NotFoundAsEmpty(existing, err); err != nil {
		return nil, fmt.Errorf("list section assignments for evaluation %d: %w", evaluationID, err)
	}
	return existing, nil
}

// Index resolves the section cycles in ids through the Lookup. Unknown
// section cycles are left out of the index.
func (r *Reconciler) Index(ctx context.Context, ids []int64) (Index, error) {
	idx := make(Index, len(ids))
	if r.lookup == nil {
		return idx, nil
	}
	for _, id := range ids {
		c, err := r.lookup.SectionCycle(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "unknown section cycle, assigning without section", "section_cycle_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve section cycle %d: %w", id, err)
		}
		idx[id] = c
	}
	return idx, nil
}

// Apply issues ops concurrently and waits for all of them. Failed operations
// are not rolled back; they are reported in Result.Failures and the snapshot
// keeps their previous rows.
func (r *Reconciler) Apply(ctx context.Context, ops []Operation, existing []domain.SectionAssignment) Result {
	type outcome struct {
		written domain.SectionAssignment
		err     error
	}
	outcomes := make([]outcome, len(ops))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(idx int, op Operation) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				outcomes[idx].err = err
				return
			}

			var (
				written domain.SectionAssignment
				err     error
			)
			if op.Action == domain.ActionCreate {
				written, err = r.store.CreateSectionAssignment(ctx, op.Assignment)
			} else {
				written, err = r.store.UpdateSectionAssignment(ctx, op.Assignment)
			}
			outcomes[idx] = outcome{written: written, err: err}
		}(i, op)
	}
	wg.Wait()

	byID := make(map[int64]domain.SectionAssignment, len(existing)+len(ops))
	for _, a := range existing {
		byID[a.ID] = a
	}

	var res Result
	for i, o := range outcomes {
		op := ops[i]
		if o.err != nil {
			res.Failures = append(res.Failures, Failure{Operation: op, Error: o.err.Error(), err: o.err})
			r.logger.WarnContext(ctx, "section assignment operation failed",
				"action", op.Action.String(),
				"section_cycle_id", op.Assignment.SectionCycleID,
				"error", o.err)
			continue
		}
		byID[o.written.ID] = o.written
		switch op.Action {
		case domain.ActionCreate:
			res.Created++
		case domain.ActionReactivate:
			res.Reactivated++
		case domain.ActionDeactivate:
			res.Deactivated++
		}
	}

	res.Assignments = make([]domain.SectionAssignment, 0, len(byID))
	for _, a := range byID {
		res.Assignments = append(res.Assignments, a)
	}
	sort.Slice(res.Assignments, func(i, j int) bool {
		ai, aj := res.Assignments[i], res.Assignments[j]
		if ai.SectionCycleID != aj.SectionCycleID {
			return ai.SectionCycleID < aj.SectionCycleID
		}
		return ai.ID < aj.ID
	})
	return res
}

// Reconcile lists the current assignments of evaluationID, plans against
// selected, and applies the plan. The returned error wraps ErrPartial when
// some operations failed; the Result is valid either way.
func (r *Reconciler) Reconcile(ctx context.Context, evaluationID int64, selected []int64) (Result, error) {
	existing, err := r.List(ctx, evaluationID)
	if err != nil {
		return Result{}, err
	}
	idx, err := r.Index(ctx, selected)
	if err != nil {
		return Result{}, err
	}

	ops := Plan(evaluationID, selected, existing, idx)
	res := r.Apply(ctx, ops, existing)
	r.logger.InfoContext(ctx, "section assignments reconciled",
		"evaluation_id", evaluationID,
		"selected", len(selected),
		"operations", len(ops),
		"created", res.Created,
		"reactivated", res.Reactivated,
		"deactivated", res.Deactivated,
		"failed", len(res.Failures),
	)
	return res, res.Err()
}
