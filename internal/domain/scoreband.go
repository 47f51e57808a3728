package domain

import "math"

// ScoreBandDetail is a contiguous band of question orders sharing one scoring
// rule. A nil SectionID makes the band apply to every section.
//
// Bands may overlap. RangeFin >= RangeStart, and the range stays within
// MaxBandQuestions and MaxQuestionOrder.
type ScoreBandDetail struct {
	ID                    int64   `json:"id"`
	ScheduledEvaluationID int64   `json:"scheduled_evaluation_id"`
	SectionID             *int64  `json:"section_id"`
	RangeStart            float64 `json:"range_start"`
	RangeFin              float64 `json:"range_fin"`
	CorrectValue          float64 `json:"correct_value"`
	IncorrectValue        float64 `json:"incorrect_value"`
	BlankValue            float64 `json:"blank_value"`
	Note                  string  `json:"note"`
	Active                bool    `json:"active"`
}

// Limits on a band's question orders.
const (
	// MaxBandQuestions is the widest span RangeFin - RangeStart a band may have.
	MaxBandQuestions = 10_000

	// MaxQuestionOrder bounds the absolute value of either range end.
	MaxQuestionOrder = math.MaxInt32
)

// ValidRange reports whether the band has finite bounds with RangeFin >= RangeStart.
func (d ScoreBandDetail) ValidRange() bool {
	for _, f := range []float64{d.RangeStart, d.RangeFin} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return d.RangeFin >= d.RangeStart
}

// Covers reports whether question order falls inside the band.
func (d ScoreBandDetail) Covers(order int) bool {
	if !d.ValidRange() {
		return false
	}
	o := float64(order)
	return o >= d.RangeStart && o <= d.RangeFin
}

// Orders returns every integer question order inside the band, ascending.
// It is empty for a band without a valid range, one spanning more than
// MaxBandQuestions, or one with an end beyond MaxQuestionOrder.
func (d ScoreBandDetail) Orders() []int {
	if !d.ValidRange() || d.RangeFin-d.RangeStart > MaxBandQuestions ||
		math.Abs(d.RangeStart) > MaxQuestionOrder || math.Abs(d.RangeFin) > MaxQuestionOrder {
		return nil
	}
	first := int(math.Ceil(d.RangeStart))
	last := int(math.Floor(d.RangeFin))
	if last < first {
		return nil
	}
	orders := make([]int, 0, last-first+1)
	for o := first; o <= last; o++ {
		orders = append(orders, o)
	}
	return orders
}

// AppliesTo reports whether the band is usable for sectionID: global bands
// apply to all sections.
func (d ScoreBandDetail) AppliesTo(sectionID *int64) bool {
	return d.SectionID == nil || SameID(d.SectionID, sectionID)
}
