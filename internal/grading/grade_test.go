package grading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/scoreband"
)

func band(id int64, section *int64, start, fin, correct, incorrect, blank float64) domain.ScoreBandDetail {
	return domain.ScoreBandDetail{
		ID: id, ScheduledEvaluationID: 1, SectionID: section,
		RangeStart: start, RangeFin: fin,
		CorrectValue: correct, IncorrectValue: incorrect, BlankValue: blank,
		Active: true,
	}
}

func key(id, bandID int64, order int, answer string) domain.AnswerKey {
	return domain.AnswerKey{
		ID: id, ScheduledEvaluationID: 1, ScoreBandDetailID: bandID,
		QuestionOrder: order, Answer: answer, Version: 1, Current: true, Active: true,
	}
}

func TestScore(t *testing.T) {
	bands := []domain.ScoreBandDetail{band(10, nil, 1, 3, 4, -1, 0)}
	keys := []domain.AnswerKey{key(1, 10, 1, "A"), key(2, 10, 2, "B"), key(3, 10, 3, "C")}

	res := Score(map[int]string{1: "a", 2: "C", 3: " "}, keys, bands, nil)

	assert.InDelta(t, 3.0, res.Score, 1e-9)
	assert.InDelta(t, 12.0, res.MaxScore, 1e-9)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 1, res.Incorrect)
	assert.Equal(t, 1, res.Blank)
	require.Len(t, res.Questions, 3)
	assert.Equal(t, OutcomeCorrect, res.Questions[0].Outcome)
	assert.Equal(t, "A", res.Questions[0].Response)
	assert.Equal(t, int64(10), res.Questions[0].BandID)
}

func TestScore_Rules(t *testing.T) {
	section := domain.ID(7)
	weight := 2.0

	tests := []struct {
		name      string
		bands     []domain.ScoreBandDetail
		keys      []domain.AnswerKey
		sheet     map[int]string
		sectionID *int64
		wantScore float64
		wantMax   float64
		check     func(t *testing.T, res Result)
	}{
		{
			name:      "section band wins over global band",
			bands:     []domain.ScoreBandDetail{band(10, nil, 1, 5, 1, 0, 0), band(11, section, 1, 5, 5, 0, 0)},
			keys:      []domain.AnswerKey{key(1, 10, 1, "A"), key(2, 11, 1, "B")},
			sheet:     map[int]string{1: "B"},
			sectionID: section,
			wantScore: 5,
			wantMax:   5,
			check: func(t *testing.T, res Result) {
				assert.Equal(t, "B", res.Questions[0].Expected)
				assert.Equal(t, int64(11), res.Questions[0].BandID)
			},
		},
		{
			name:      "bands of other sections are ignored",
			bands:     []domain.ScoreBandDetail{band(10, nil, 1, 5, 1, 0, 0), band(11, domain.ID(8), 1, 5, 5, 0, 0)},
			keys:      []domain.AnswerKey{key(1, 10, 1, "A"), key(2, 11, 1, "B")},
			sheet:     map[int]string{1: "A"},
			sectionID: section,
			wantScore: 1,
			wantMax:   1,
		},
		{
			name:  "weight multiplies every value",
			bands: []domain.ScoreBandDetail{band(10, nil, 1, 2, 3, -1, 0.5)},
			keys: func() []domain.AnswerKey {
				k := key(1, 10, 1, "A")
				k.Weight = &weight
				return []domain.AnswerKey{k, key(2, 10, 2, "B")}
			}(),
			sheet:     map[int]string{1: "C", 2: ""},
			wantScore: -2 + 0.5,
			wantMax:   6 + 3,
		},
		{
			name:      "letters outside the domain are incorrect",
			bands:     []domain.ScoreBandDetail{band(10, nil, 1, 1, 1, -0.25, 0)},
			keys:      []domain.AnswerKey{key(1, 10, 1, "A")},
			sheet:     map[int]string{1: "Z"},
			wantScore: -0.25,
			wantMax:   1,
			check: func(t *testing.T, res Result) {
				assert.Equal(t, 1, res.Incorrect)
			},
		},
		{
			name:  "inactive and non-current keys are skipped",
			bands: []domain.ScoreBandDetail{band(10, nil, 1, 3, 1, 0, 0)},
			keys: func() []domain.AnswerKey {
				old := key(1, 10, 1, "A")
				old.Current = false
				off := key(2, 10, 2, "A")
				off.Active = false
				return []domain.AnswerKey{old, off, key(3, 10, 3, "A")}
			}(),
			sheet:     map[int]string{1: "A", 2: "A", 3: "A"},
			wantScore: 1,
			wantMax:   1,
			check: func(t *testing.T, res Result) {
				require.Len(t, res.Questions, 1)
				assert.Equal(t, 3, res.Questions[0].Order)
			},
		},
		{
			name: "question outside every band is unscored",
			bands: func() []domain.ScoreBandDetail {
				b := band(10, nil, 1, 1, 1, 0, 0)
				return []domain.ScoreBandDetail{b}
			}(),
			keys:      []domain.AnswerKey{key(1, 10, 1, "A"), key(2, 0, 4, "B")},
			sheet:     map[int]string{1: "A", 4: "B"},
			wantScore: 1,
			wantMax:   1,
			check: func(t *testing.T, res Result) {
				assert.Equal(t, 1, res.Unscored)
				assert.Equal(t, OutcomeUnscored, res.Questions[1].Outcome)
				assert.Equal(t, "B", res.Questions[1].Expected)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(tt.sheet, tt.keys, tt.bands, tt.sectionID)
			assert.InDelta(t, tt.wantScore, res.Score, 1e-9)
			assert.InDelta(t, tt.wantMax, res.MaxScore, 1e-9)
			if tt.check != nil {
				tt.check(t, res)
			}
		})
	}
}

func TestScore_Empty(t *testing.T) {
	res := Score(nil, nil, nil, nil)
	assert.Zero(t, res.Score)
	assert.Empty(t, res.Questions)
}

type bandStore []domain.ScoreBandDetail

func (b bandStore) ListScoreBands(context.Context, int64) ([]domain.ScoreBandDetail, error) {
	return b, nil
}

func (bandStore) CreateScoreBand(_ context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	return d, nil
}

func (bandStore) UpdateScoreBand(_ context.Context, d domain.ScoreBandDetail) (domain.ScoreBandDetail, error) {
	return d, nil
}

type keyStore struct {
	byBand map[int64][]domain.AnswerKey
	calls  []int64
}

func (k *keyStore) ListAnswerKeys(_ context.Context, detailID int64) ([]domain.AnswerKey, error) {
	k.calls = append(k.calls, detailID)
	keys, ok := k.byBand[detailID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return keys, nil
}

func TestGrader_Grade(t *testing.T) {
	section := domain.ID(7)
	other := band(12, domain.ID(8), 1, 5, 9, 0, 0)
	foreign := band(13, nil, 1, 5, 9, 0, 0)
	foreign.ScheduledEvaluationID = 2

	bands := bandStore{band(10, nil, 1, 2, 1, 0, 0), band(11, section, 3, 3, 2, 0, 0), other, foreign}
	keys := &keyStore{byBand: map[int64][]domain.AnswerKey{
		10: {key(1, 10, 1, "A"), key(2, 10, 2, "B")},
		12: {key(3, 12, 1, "C")},
	}}

	res, err := NewGrader(scoreband.New(bands), keys).Grade(context.Background(), 1, section, map[int]string{1: "A", 2: "B"})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Score, 1e-9)
	assert.Equal(t, 2, res.Correct)
	assert.ElementsMatch(t, []int64{10, 11}, keys.calls)
}
