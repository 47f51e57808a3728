package domain

import "strings"

// AnswerLetters is the domain of valid answers.
const AnswerLetters = "ABCDEFGH"

// NormalizeAnswer trims and upper-cases an answer and reports whether the
// result is a single letter in AnswerLetters.
func NormalizeAnswer(s string) (string, bool) {
	a := strings.ToUpper(strings.TrimSpace(s))
	return a, len(a) == 1 && strings.Contains(AnswerLetters, a)
}

// AnswerKey is the expected answer for one question of a score band.
// SiteID, CycleID, and SectionID are denormalized from the owning
// evaluation and band for reporting.
type AnswerKey struct {
	ID                    int64    `json:"id"`
	ScheduledEvaluationID int64    `json:"scheduled_evaluation_id"`
	ScoreBandDetailID     int64    `json:"score_band_detail_id"`
	QuestionOrder         int      `json:"question_order"`
	Answer                string   `json:"answer"`
	Weight                *float64 `json:"weight"`
	Version               int      `json:"version"`
	Current               bool     `json:"current"`
	Note                  string   `json:"note"`
	Active                bool     `json:"active"`
	SiteID                int64    `json:"site_id"`
	CycleID               *int64   `json:"cycle_id"`
	SectionID             *int64   `json:"section_id"`
}

// EffectiveWeight returns Weight, or 1 when it is unset.
func (k AnswerKey) EffectiveWeight() float64 {
	if k.Weight == nil {
		return 1
	}
	return *k.Weight
}

// Draft converts the key into its editable form.
func (k AnswerKey) Draft() AnswerKeyDraft {
	current, active := k.Current, k.Active
	return AnswerKeyDraft{
		ID:            k.ID,
		QuestionOrder: k.QuestionOrder,
		Answer:        k.Answer,
		Weight:        cloneFloat(k.Weight),
		Version:       k.Version,
		Current:       &current,
		Note:          k.Note,
		Active:        &active,
	}
}

// AnswerKeyDraft is an edited answer key as submitted by a caller.
// ID is 0 for keys that do not exist yet. Nil Current and Active default to
// true and a zero Version defaults to 1.
type AnswerKeyDraft struct {
	ID            int64    `json:"id,omitempty"`
	QuestionOrder int      `json:"question_order"`
	Answer        string   `json:"answer"`
	Weight        *float64 `json:"weight,omitempty"`
	Version       int      `json:"version,omitempty"`
	Current       *bool    `json:"current,omitempty"`
	Note          string   `json:"note,omitempty"`
	Active        *bool    `json:"active,omitempty"`
}

// Resolved returns the draft with defaults applied and the answer normalized.
func (d AnswerKeyDraft) Resolved() AnswerKeyDraft {
	d.Answer, _ = NormalizeAnswer(d.Answer)
	if d.Version < 1 {
		d.Version = 1
	}
	if d.Current == nil {
		t := true
		d.Current = &t
	}
	if d.Active == nil {
		t := true
		d.Active = &t
	}
	return d
}

// Differs reports whether the resolved draft changes any editable field of k.
func (d AnswerKeyDraft) Differs(k AnswerKey) bool {
	r := d.Resolved()
	return r.QuestionOrder != k.QuestionOrder ||
		r.Answer != k.Answer ||
		!sameFloat(r.Weight, k.Weight) ||
		r.Version != k.Version ||
		*r.Current != k.Current ||
		r.Note != k.Note ||
		*r.Active != k.Active
}

// Apply writes the resolved draft's editable fields onto k.
func (d AnswerKeyDraft) Apply(k AnswerKey) AnswerKey {
	r := d.Resolved()
	k.QuestionOrder = r.QuestionOrder
	k.Answer = r.Answer
	k.Weight = cloneFloat(r.Weight)
	k.Version = r.Version
	k.Current = *r.Current
	k.Note = r.Note
	k.Active = *r.Active
	return k
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
