// Package answerkey manages the answer keys of one score band detail: loading
// them, offering an editable grid, and saving an edited set as the minimal
// batch of creates, updates, and deletions.
package answerkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/scoreband"
)

// DefaultConcurrency bounds the store calls issued in parallel by Save.
const DefaultConcurrency = 8

// Store is the persistence surface needed by Ledger.
type Store interface {
	ListAnswerKeys(ctx context.Context, detailID int64) ([]domain.AnswerKey, error)
	CreateAnswerKey(ctx context.Context, k domain.AnswerKey) (domain.AnswerKey, error)
	UpdateAnswerKey(ctx context.Context, k domain.AnswerKey) (domain.AnswerKey, error)
	DeleteAnswerKey(ctx context.Context, id int64) error
}

// Operation categories reported by SaveResult and BatchError.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// SaveResult counts what a Save did. Keys is the snapshot after the save.
type SaveResult struct {
	Created   int                `json:"created"`
	Updated   int                `json:"updated"`
	Deleted   int                `json:"deleted"`
	Unchanged int                `json:"unchanged"`
	Failed    int                `json:"failed"`
	Keys      []domain.AnswerKey `json:"keys"`
}

// OpFailure is one store call that failed during Save.
type OpFailure struct {
	Category      string `json:"category"`
	ID            int64  `json:"id,omitempty"`
	QuestionOrder int    `json:"question_order"`
	Err           error  `json:"-"`
}

// BatchError reports the failed operations of a Save. Operations that
// succeeded stay committed.
type BatchError struct {
	Failures []OpFailure
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("%s question %d: %v", f.Category, f.QuestionOrder, f.Err))
	}
	return fmt.Sprintf("answer key save failed for %s: %s",
		strings.Join(e.Categories(), ", "), strings.Join(msgs, "; "))
}

// Unwrap exposes every underlying failure to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Categories lists the distinct failed categories in create, update, delete order.
func (e *BatchError) Categories() []string {
	var out []string
	for _, c := range []string{OpCreate, OpUpdate, OpDelete} {
		for _, f := range e.Failures {
			if f.Category == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Ledger holds the answer keys of one score band detail for an editing
// session. It is safe for concurrent use; calls are serialized.
type Ledger struct {
	store       Store
	evaluation  domain.ScheduledEvaluation
	detail      domain.ScoreBandDetail
	concurrency int
	logger      *slog.Logger

	mu       sync.Mutex
	loaded   bool
	snapshot []domain.AnswerKey
}

// NewLedger creates a ledger for detail. The evaluation supplies the
// denormalized site and cycle of new keys.
func NewLedger(store Store, evaluation domain.ScheduledEvaluation, detail domain.ScoreBandDetail) *Ledger {
	return &Ledger{
		store:       store,
		evaluation:  evaluation,
		detail:      detail,
		concurrency: DefaultConcurrency,
		logger: slog.Default().With(
			"component", "answerkey",
			"score_band_detail_id", detail.ID,
		),
	}
}

// WithConcurrency sets the number of parallel store calls issued by Save.
func (l *Ledger) WithConcurrency(n int) *Ledger {
	if n > 0 {
		l.concurrency = n
	}
	return l
}

// Load reads the detail's keys ordered by question order and makes them the
// snapshot that Save diffs against.
func (l *Ledger) Load(ctx context.Context) ([]domain.AnswerKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return cloneKeys(l.snapshot), nil
}

func (l *Ledger) load(ctx context.Context) error {
	keys, err := l.store.ListAnswerKeys(ctx, l.detail.ID)
	if keys, err = domain.NotFoundAsEmpty(keys, err); err != nil {
		return fmt.Errorf("list answer keys for detail %d: %w", l.detail.ID, err)
	}
	l.snapshot = sortKeys(keys)
	l.loaded = true
	return nil
}

// Snapshot returns the keys as of the last Load or Save.
func (l *Ledger) Snapshot() []domain.AnswerKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneKeys(l.snapshot)
}

// Drafts returns the snapshot in editable form. When the detail has no keys
// yet it returns the default grid covering the band's question orders.
func (l *Ledger) Drafts() []domain.AnswerKeyDraft {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.snapshot) == 0 {
		return scoreband.GenerateDefaultKeys(l.detail)
	}
	drafts := make([]domain.AnswerKeyDraft, len(l.snapshot))
	for i, k := range l.snapshot {
		drafts[i] = k.Draft()
	}
	return drafts
}

// Check validates an edited set against the snapshot without touching the
// store. Every invalid answer, duplicated question order, and unknown id is
// reported in one *domain.ValidationError.
func Check(drafts []domain.AnswerKeyDraft, snapshot []domain.AnswerKey) error {
	verr := domain.NewValidationError("answer_key")

	for i, d := range drafts {
		order := d.QuestionOrder
		if _, ok := domain.NormalizeAnswer(d.Answer); !ok {
			verr.Add(domain.Issue{
				Field:         "answer",
				Row:           i + 1,
				QuestionOrder: &order,
				Value:         d.Answer,
				Message:       "must be a single letter from A to H",
			})
		}
		if d.QuestionOrder < 1 {
			verr.Add(domain.Issue{Field: "question_order", Row: i + 1, QuestionOrder: &order, Message: "must be at least 1"})
		}
	}

	rowsByOrder := make(map[int][]int, len(drafts))
	for i, d := range drafts {
		rowsByOrder[d.QuestionOrder] = append(rowsByOrder[d.QuestionOrder], i+1)
	}
	for i, d := range drafts {
		if rows := rowsByOrder[d.QuestionOrder]; len(rows) > 1 {
			order := d.QuestionOrder
			verr.Add(domain.Issue{
				Field:         "question_order",
				Row:           i + 1,
				QuestionOrder: &order,
				Message:       fmt.Sprintf("duplicated in rows %s", joinInts(rows)),
			})
		}
	}

	known := make(map[int64]bool, len(snapshot))
	for _, k := range snapshot {
		known[k.ID] = true
	}
	seen := make(map[int64]bool, len(drafts))
	for i, d := range drafts {
		if d.ID == 0 {
			continue
		}
		order := d.QuestionOrder
		switch {
		case !known[d.ID]:
			verr.Add(domain.Issue{Field: "id", Row: i + 1, QuestionOrder: &order, Value: fmt.Sprint(d.ID), Message: "does not belong to this score band"})
		case seen[d.ID]:
			verr.Add(domain.Issue{Field: "id", Row: i + 1, QuestionOrder: &order, Value: fmt.Sprint(d.ID), Message: "appears more than once"})
		}
		seen[d.ID] = true
	}

	return verr.OrNil()
}

// Plan is the partition of an edited set against a snapshot.
type Plan struct {
	Creates   []domain.AnswerKeyDraft
	Updates   []domain.AnswerKeyDraft
	Deletes   []domain.AnswerKey
	Unchanged int
}

// Partition splits drafts into creates (no id), changed updates, and the
// snapshot keys missing from drafts. Drafts must already pass Check.
func Partition(drafts []domain.AnswerKeyDraft, snapshot []domain.AnswerKey) Plan {
	byID := make(map[int64]domain.AnswerKey, len(snapshot))
	for _, k := range snapshot {
		byID[k.ID] = k
	}

	var p Plan
	kept := make(map[int64]bool, len(drafts))
	for _, d := range drafts {
		if d.ID == 0 {
			p.Creates = append(p.Creates, d.Resolved())
			continue
		}
		kept[d.ID] = true
		if d.Differs(byID[d.ID]) {
			p.Updates = append(p.Updates, d.Resolved())
		} else {
			p.Unchanged++
		}
	}
	for _, k := range snapshot {
		if !kept[k.ID] {
			p.Deletes = append(p.Deletes, k)
		}
	}
	return p
}

// Save validates drafts as the complete new key set of the detail and
// persists the difference from the snapshot. Nothing is written when
// validation fails. Store calls run concurrently and all of them finish
// before Save returns; failures are reported in a *BatchError alongside the
// counts of what succeeded, and the snapshot reflects every successful call.
func (l *Ledger) Save(ctx context.Context, drafts []domain.AnswerKeyDraft) (SaveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		if err := l.load(ctx); err != nil {
			return SaveResult{}, err
		}
	}
	if err := Check(drafts, l.snapshot); err != nil {
		return SaveResult{}, err
	}

	plan := Partition(drafts, l.snapshot)
	byID := make(map[int64]domain.AnswerKey, len(l.snapshot))
	for _, k := range l.snapshot {
		byID[k.ID] = k
	}

	var (
		mu       sync.Mutex
		created  []domain.AnswerKey
		updated  = make(map[int64]domain.AnswerKey)
		deleted  = make(map[int64]bool)
		failures []OpFailure
	)
	fail := func(category string, id int64, order int, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, OpFailure{Category: category, ID: id, QuestionOrder: order, Err: err})
	}

	// Calls record their own failures; g.Wait never reports one.
	var g errgroup.Group
	g.SetLimit(l.concurrency)

	for _, d := range plan.Creates {
		g.Go(func() error {
			k, err := l.store.CreateAnswerKey(ctx, d.Apply(l.newKey()))
			if err != nil {
				fail(OpCreate, 0, d.QuestionOrder, err)
				return nil
			}
			mu.Lock()
			created = append(created, k)
			mu.Unlock()
			return nil
		})
	}
	for _, d := range plan.Updates {
		g.Go(func() error {
			k, err := l.store.UpdateAnswerKey(ctx, d.Apply(byID[d.ID]))
			if err != nil {
				fail(OpUpdate, d.ID, d.QuestionOrder, err)
				return nil
			}
			mu.Lock()
			updated[k.ID] = k
			mu.Unlock()
			return nil
		})
	}
	for _, k := range plan.Deletes {
		g.Go(func() error {
			if err := l.store.DeleteAnswerKey(ctx, k.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				fail(OpDelete, k.ID, k.QuestionOrder, err)
				return nil
			}
			mu.Lock()
			deleted[k.ID] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	next := make([]domain.AnswerKey, 0, len(l.snapshot)+len(created))
	for _, k := range l.snapshot {
		if deleted[k.ID] {
			continue
		}
		if u, ok := updated[k.ID]; ok {
			k = u
		}
		next = append(next, k)
	}
	next = append(next, created...)
	l.snapshot = sortKeys(next)

	res := SaveResult{
		Created:   len(created),
		Updated:   len(updated),
		Deleted:   len(deleted),
		Unchanged: plan.Unchanged,
		Failed:    len(failures),
		Keys:      cloneKeys(l.snapshot),
	}
	l.logger.InfoContext(ctx, "answer keys saved",
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"unchanged", res.Unchanged,
		"failed", res.Failed,
	)

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool {
			if failures[i].Category != failures[j].Category {
				return categoryRank(failures[i].Category) < categoryRank(failures[j].Category)
			}
			return failures[i].QuestionOrder < failures[j].QuestionOrder
		})
		return res, &BatchError{Failures: failures}
	}
	return res, nil
}

// newKey returns a key carrying the detail's ownership and denormalized fields.
func (l *Ledger) newKey() domain.AnswerKey {
	return domain.AnswerKey{
		ScheduledEvaluationID: l.evaluation.ID,
		ScoreBandDetailID:     l.detail.ID,
		SiteID:                l.evaluation.SiteID,
		CycleID:               domain.CloneID(l.evaluation.CycleID),
		SectionID:             domain.CloneID(l.detail.SectionID),
	}
}

func categoryRank(c string) int {
	switch c {
	case OpCreate:
		return 0
	case OpUpdate:
		return 1
	default:
		return 2
	}
}

func sortKeys(keys []domain.AnswerKey) []domain.AnswerKey {
	out := cloneKeys(keys)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuestionOrder != out[j].QuestionOrder {
			return out[i].QuestionOrder < out[j].QuestionOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneKeys(keys []domain.AnswerKey) []domain.AnswerKey {
	out := make([]domain.AnswerKey, len(keys))
	copy(out, keys)
	return out
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}
