// Package grading scores a student's response sheet against the answer keys
// and score bands of a scheduled evaluation.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/scoreband"
)

// Outcome classifies one graded question.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeBlank     Outcome = "blank"
	OutcomeUnscored  Outcome = "unscored"
)

// Question is the grading of one question order.
type Question struct {
	Order    int     `json:"question_order"`
	Expected string  `json:"expected"`
	Response string  `json:"response"`
	Outcome  Outcome `json:"outcome"`
	Points   float64 `json:"points"`
	Weight   float64 `json:"weight"`
	BandID   int64   `json:"score_band_detail_id,omitempty"`
}

// Result aggregates a graded sheet. MaxScore is the score of a sheet with
// every scored question correct.
type Result struct {
	Score     float64    `json:"score"`
	MaxScore  float64    `json:"max_score"`
	Correct   int        `json:"correct"`
	Incorrect int        `json:"incorrect"`
	Blank     int        `json:"blank"`
	Unscored  int        `json:"unscored"`
	Questions []Question `json:"questions"`
}

// Score grades sheet, a map from question order to the response given.
//
// Only current, active keys count. Each question order is scored with the
// band returned by scoreband.ForQuestion for sectionID, using the key stored
// under that band when one exists. A response that is empty is blank; one
// that is not the expected letter, including letters outside the answer
// domain, is incorrect. Points are the band value times the key weight.
// Questions without a covering band are reported as unscored.
func Score(sheet map[int]string, keys []domain.AnswerKey, bands []domain.ScoreBandDetail, sectionID *int64) Result {
	applicable := make(map[int64]bool, len(bands))
	for _, b := range bands {
		if b.Active && b.AppliesTo(sectionID) {
			applicable[b.ID] = true
		}
	}

	// candidates[order][bandID] is the key for that question under that band.
	candidates := make(map[int]map[int64]domain.AnswerKey)
	for _, k := range keys {
		if !k.Current || !k.Active {
			continue
		}
		if k.ScoreBandDetailID > 0 && !applicable[k.ScoreBandDetailID] {
			continue
		}
		byBand, ok := candidates[k.QuestionOrder]
		if !ok {
			byBand = make(map[int64]domain.AnswerKey)
			candidates[k.QuestionOrder] = byBand
		}
		if prev, dup := byBand[k.ScoreBandDetailID]; !dup || k.ID < prev.ID {
			byBand[k.ScoreBandDetailID] = k
		}
	}

	orders := make([]int, 0, len(candidates))
	for o := range candidates {
		orders = append(orders, o)
	}
	sort.Ints(orders)

	res := Result{Questions: make([]Question, 0, len(orders))}
	for _, order := range orders {
		q := Question{Order: order}
		q.Response, _ = domain.NormalizeAnswer(sheet[order])

		band, ok := scoreband.ForQuestion(bands, order, sectionID)
		if !ok {
			q.Outcome = OutcomeUnscored
			q.Expected = pick(candidates[order], 0).Answer
			res.Unscored++
			res.Questions = append(res.Questions, q)
			continue
		}

		key := pick(candidates[order], band.ID)
		q.Expected = key.Answer
		q.Weight = key.EffectiveWeight()
		q.BandID = band.ID

		switch {
		case q.Response == "":
			q.Outcome = OutcomeBlank
			q.Points = band.BlankValue * q.Weight
			res.Blank++
		case q.Response == key.Answer:
			q.Outcome = OutcomeCorrect
			q.Points = band.CorrectValue * q.Weight
			res.Correct++
		default:
			q.Outcome = OutcomeIncorrect
			q.Points = band.IncorrectValue * q.Weight
			res.Incorrect++
		}
		res.Score += q.Points
		res.MaxScore += band.CorrectValue * q.Weight
		res.Questions = append(res.Questions, q)
	}
	return res
}

// pick returns the key stored under bandID, or the key of the lowest band id
// when there is none.
func pick(byBand map[int64]domain.AnswerKey, bandID int64) domain.AnswerKey {
	if k, ok := byBand[bandID]; ok {
		return k
	}
	var (
		best  domain.AnswerKey
		found bool
	)
	for id, k := range byBand {
		if !found || id < best.ScoreBandDetailID {
			best, found = k, true
		}
	}
	return best
}

// BandLister lists the score bands of an evaluation.
type BandLister interface {
	List(ctx context.Context, evaluationID int64) ([]domain.ScoreBandDetail, error)
}

// KeyLister lists the answer keys of a score band detail.
type KeyLister interface {
	ListAnswerKeys(ctx context.Context, detailID int64) ([]domain.AnswerKey, error)
}

// Grader loads bands and keys and scores sheets with them.
type Grader struct {
	bands  BandLister
	keys   KeyLister
	logger *slog.Logger
}

// NewGrader creates a Grader.
func NewGrader(bands BandLister, keys KeyLister) *Grader {
	return &Grader{bands: bands, keys: keys, logger: slog.Default().With("component", "grader")}
}

// Grade loads the bands of evaluationID that apply to sectionID together with
// their answer keys and scores sheet.
func (g *Grader) Grade(ctx context.Context, evaluationID int64, sectionID *int64, sheet map[int]string) (Result, error) {
	bands, err := g.bands.List(ctx, evaluationID)
	if err != nil {
		return Result{}, err
	}

	var keys []domain.AnswerKey
	for _, b := range bands {
		if !b.Active || !b.AppliesTo(sectionID) {
			continue
		}
		bandKeys, err := g.keys.ListAnswerKeys(ctx, b.ID)
		if bandKeys, err = domain.NotFoundAsEmpty(bandKeys, err); err != nil {
			return Result{}, fmt.Errorf("list answer keys of band %d: %w", b.ID, err)
		}
		keys = append(keys, bandKeys...)
	}

	res := Score(sheet, keys, bands, sectionID)
	g.logger.DebugContext(ctx, "sheet graded",
		"evaluation_id", evaluationID,
		"score", res.Score,
		"max_score", res.MaxScore,
		"unscored", res.Unscored)
	return res, nil
}
