package domain

import (
	"encoding/json"
	"fmt"
)

// SectionAssignment links a scheduled evaluation to a section within a cycle.
// The logical key is (ScheduledEvaluationID, SectionCycleID).
//
// State is persisted as the boolean "active" field; a SectionAssignment
// loaded from a store is never StateAbsent.
type SectionAssignment struct {
	ID                    int64
	ScheduledEvaluationID int64
	SectionCycleID        int64

	// SectionID is nil for section cycles with no concrete section.
	SectionID *int64

	State AssignmentState
}

// Active reports whether the assignment is currently in effect.
func (a SectionAssignment) Active() bool { return a.State == StateActive }

type sectionAssignmentJSON struct {
	ID                    int64  `json:"id"`
	ScheduledEvaluationID int64  `json:"scheduled_evaluation_id"`
	SectionCycleID        int64  `json:"section_cycle_id"`
	SectionID             *int64 `json:"section_id"`
	Active                bool   `json:"active"`
}

// MarshalJSON encodes State as the persisted "active" flag.
func (a SectionAssignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(sectionAssignmentJSON{
		ID:                    a.ID,
		ScheduledEvaluationID: a.ScheduledEvaluationID,
		SectionCycleID:        a.SectionCycleID,
		SectionID:             a.SectionID,
		Active:                a.Active(),
	})
}

// UnmarshalJSON decodes the "active" flag into State.
func (a *SectionAssignment) UnmarshalJSON(data []byte) error {
	var raw sectionAssignmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode section assignment: %w", err)
	}
	*a = SectionAssignment{
		ID:                    raw.ID,
		ScheduledEvaluationID: raw.ScheduledEvaluationID,
		SectionCycleID:        raw.SectionCycleID,
		SectionID:             raw.SectionID,
		State:                 StateOf(raw.Active),
	}
	return nil
}

// SectionCycle is a section offered within an academic cycle. It is the
// lookup metadata used to resolve the section id of a new assignment.
type SectionCycle struct {
	ID        int64  `json:"id"`
	CycleID   int64  `json:"cycle_id"`
	SectionID *int64 `json:"section_id"`
	Name      string `json:"name"`
}
