package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/answerkey"
	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/pkg/events"
)

// GET /score-bands/:id/answer-keys
func (s *Server) listAnswerKeys(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := s.store.ListAnswerKeys(c.Request().Context(), id)
	return listing(c, items, err)
}

// checkAnswerKey normalizes the answer of k and checks its references.
func checkAnswerKey(k *domain.AnswerKey) error {
	verr := domain.NewValidationError("answer_key")
	if k.ScoreBandDetailID <= 0 {
		verr.Add(domain.Issue{Field: "score_band_detail_id", Message: "must be greater than 0"})
	}
	if k.QuestionOrder <= 0 {
		verr.Add(domain.Issue{Field: "question_order", Message: "must be greater than 0"})
	}
	answer, ok := domain.NormalizeAnswer(k.Answer)
	if !ok {
		verr.Add(domain.Issue{Field: "answer", Value: k.Answer, Message: "must be one of " + domain.AnswerLetters})
	}
	k.Answer = answer
	k.Version = max(k.Version, 1)
	return verr.OrNil()
}

// POST /answer-keys
func (s *Server) createAnswerKey(c echo.Context) error {
	var k domain.AnswerKey
	if err := bind(c, "answer_key", &k); err != nil {
		return err
	}
	if err := checkAnswerKey(&k); err != nil {
		return err
	}
	k.ID = 0
	created, err := s.store.CreateAnswerKey(c.Request().Context(), k)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// PUT /answer-keys/:id
func (s *Server) updateAnswerKey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var k domain.AnswerKey
	if err := bind(c, "answer_key", &k); err != nil {
		return err
	}
	if err := checkAnswerKey(&k); err != nil {
		return err
	}
	k.ID = id
	updated, err := s.store.UpdateAnswerKey(c.Request().Context(), k)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DELETE /answer-keys/:id
func (s *Server) deleteAnswerKey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteAnswerKey(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ledger opens the answer key ledger of score band id.
func (s *Server) ledger(ctx context.Context, id int64) (*answerkey.Ledger, error) {
	detail, err := s.store.GetScoreBand(ctx, id)
	if err != nil {
		return nil, err
	}
	evaluation, err := s.schedule.Get(ctx, detail.ScheduledEvaluationID)
	if err != nil {
		return nil, err
	}
	return answerkey.NewLedger(s.store, evaluation, detail).WithConcurrency(s.concurrency), nil
}

// GET /score-bands/:id/answer-keys/drafts
//
// Returns the stored keys in editable form, or the default grid of the band
// when it has none.
func (s *Server) answerKeyDrafts(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	l, err := s.ledger(ctx, id)
	if err != nil {
		return err
	}
	if _, err := l.Load(ctx); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l.Drafts())
}

type saveAnswerKeysResponse struct {
	answerkey.SaveResult
	Failures []answerKeyFailure `json:"failures,omitempty"`
}

type answerKeyFailure struct {
	answerkey.OpFailure
	Error string `json:"error"`
}

// PUT /score-bands/:id/answer-keys
//
// The body is the complete new key set of the band. Answers 207 with the
// failed operations when some store calls failed.
func (s *Server) saveAnswerKeys(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var drafts []domain.AnswerKeyDraft
	if err := bind(c, "answer_key", &drafts); err != nil {
		return err
	}
	l, err := s.ledger(ctx, id)
	if err != nil {
		return err
	}

	res, err := l.Save(ctx, drafts)
	var batch *answerkey.BatchError
	if err != nil && !errors.As(err, &batch) {
		return err
	}
	s.publisher.Publish(ctx, events.TypeAnswerKeysSaved, "", map[string]any{
		"score_band_detail_id": id,
		"created":              res.Created,
		"updated":              res.Updated,
		"deleted":              res.Deleted,
		"failed":               res.Failed,
	})

	body := saveAnswerKeysResponse{SaveResult: res}
	if batch == nil {
		return c.JSON(http.StatusOK, body)
	}
	for _, f := range batch.Failures {
		body.Failures = append(body.Failures, answerKeyFailure{OpFailure: f, Error: f.Err.Error()})
	}
	return c.JSON(http.StatusMultiStatus, body)
}
