package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "a", want: "A", wantOK: true},
		{in: " h ", want: "H", wantOK: true},
		{in: "I", want: "I", wantOK: false},
		{in: "", want: "", wantOK: false},
		{in: "AB", want: "AB", wantOK: false},
		{in: "1", want: "1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeAnswer(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestAnswerKeyDraft_Resolved(t *testing.T) {
	d := AnswerKeyDraft{QuestionOrder: 1, Answer: "b"}.Resolved()

	assert.Equal(t, "B", d.Answer)
	assert.Equal(t, 1, d.Version)
	assert.True(t, *d.Current)
	assert.True(t, *d.Active)
}

func TestAnswerKeyDraft_Differs(t *testing.T) {
	weight := 2.0
	key := AnswerKey{ID: 9, QuestionOrder: 4, Answer: "C", Weight: &weight, Version: 1, Current: true, Active: true}

	tests := []struct {
		name   string
		modify func(*AnswerKeyDraft)
		want   bool
	}{
		{name: "unchanged", modify: func(*AnswerKeyDraft) {}, want: false},
		{name: "lowercase answer is unchanged", modify: func(d *AnswerKeyDraft) { d.Answer = "c" }, want: false},
		{name: "answer", modify: func(d *AnswerKeyDraft) { d.Answer = "D" }, want: true},
		{name: "weight cleared", modify: func(d *AnswerKeyDraft) { d.Weight = nil }, want: true},
		{name: "weight value", modify: func(d *AnswerKeyDraft) { w := 3.0; d.Weight = &w }, want: true},
		{name: "version", modify: func(d *AnswerKeyDraft) { d.Version = 2 }, want: true},
		{name: "not current", modify: func(d *AnswerKeyDraft) { f := false; d.Current = &f }, want: true},
		{name: "note", modify: func(d *AnswerKeyDraft) { d.Note = "revised" }, want: true},
		{name: "order", modify: func(d *AnswerKeyDraft) { d.QuestionOrder = 5 }, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := key.Draft()
			tt.modify(&d)
			assert.Equal(t, tt.want, d.Differs(key))
		})
	}
}

func TestAnswerKeyDraft_Apply(t *testing.T) {
	key := AnswerKey{ID: 9, ScoreBandDetailID: 3, QuestionOrder: 4, Answer: "C", Version: 1, Current: true, Active: true}
	updated := AnswerKeyDraft{ID: 9, QuestionOrder: 4, Answer: "e", Version: 2}.Apply(key)

	assert.Equal(t, int64(3), updated.ScoreBandDetailID)
	assert.Equal(t, "E", updated.Answer)
	assert.Equal(t, 2, updated.Version)
	assert.False(t, AnswerKeyDraft{ID: 9, QuestionOrder: 4, Answer: "E", Version: 2}.Differs(updated))
}

func TestScoreBandDetail_Orders(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		fin   float64
		want  []int
	}{
		{name: "integral", start: 1, fin: 5, want: []int{1, 2, 3, 4, 5}},
		{name: "single", start: 3, fin: 3, want: []int{3}},
		{name: "fractional bounds", start: 1.5, fin: 4.2, want: []int{2, 3, 4}},
		{name: "inverted", start: 5, fin: 1, want: nil},
		{name: "no integer inside", start: 1.2, fin: 1.8, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ScoreBandDetail{RangeStart: tt.start, RangeFin: tt.fin}
			assert.Equal(t, tt.want, d.Orders())
		})
	}
}

func TestScoreBandDetail_AppliesTo(t *testing.T) {
	global := ScoreBandDetail{RangeStart: 1, RangeFin: 10}
	scoped := ScoreBandDetail{RangeStart: 1, RangeFin: 10, SectionID: ID(5)}

	assert.True(t, global.AppliesTo(nil))
	assert.True(t, global.AppliesTo(ID(5)))
	assert.True(t, scoped.AppliesTo(ID(5)))
	assert.False(t, scoped.AppliesTo(ID(6)))
	assert.False(t, scoped.AppliesTo(nil))
	assert.True(t, scoped.Covers(10))
	assert.False(t, scoped.Covers(11))
}
