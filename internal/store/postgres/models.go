package postgres

import (
	"time"

	"github.com/ahrav/go-proctor/internal/domain"
)

type evaluationRow struct {
	ID               int64  `gorm:"primaryKey"`
	SiteID           int64  `gorm:"index;not null"`
	CycleID          *int64 `gorm:"index"`
	EvaluationTypeID int64  `gorm:"not null"`
	Name             string `gorm:"size:200;not null"`
	StartDate        string `gorm:"size:10;not null"` // YYYY-MM-DD
	StartTime        string `gorm:"size:5;not null"`  // HH:MM
	EndTime          string `gorm:"size:5;not null"`
	CareerID         *int64
	Active           bool `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (evaluationRow) TableName() string { return "scheduled_evaluations" }

func evaluationToRow(e domain.ScheduledEvaluation) evaluationRow {
	return evaluationRow{
		ID:               e.ID,
		SiteID:           e.SiteID,
		CycleID:          domain.CloneID(e.CycleID),
		EvaluationTypeID: e.EvaluationTypeID,
		Name:             e.Name,
		StartDate:        e.StartDate,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		CareerID:         domain.CloneID(e.CareerID),
		Active:           e.Active,
	}
}

func (r evaluationRow) domain() domain.ScheduledEvaluation {
	return domain.ScheduledEvaluation{
		ID:               r.ID,
		SiteID:           r.SiteID,
		CycleID:          r.CycleID,
		EvaluationTypeID: r.EvaluationTypeID,
		Name:             r.Name,
		StartDate:        r.StartDate,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		CareerID:         r.CareerID,
		Active:           r.Active,
	}
}

type assignmentRow struct {
	ID                    int64  `gorm:"primaryKey"`
	ScheduledEvaluationID int64  `gorm:"uniqueIndex:ux_section_assignment_key;not null"`
	SectionCycleID        int64  `gorm:"uniqueIndex:ux_section_assignment_key;not null"`
	SectionID             *int64 `gorm:"index"`
	Active                bool   `gorm:"not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (assignmentRow) TableName() string { return "section_assignments" }

func assignmentToRow(a domain.SectionAssignment) assignmentRow {
	return assignmentRow{
		ID:                    a.ID,
		ScheduledEvaluationID: a.ScheduledEvaluationID,
		SectionCycleID:        a.SectionCycleID,
		SectionID:             domain.CloneID(a.SectionID),
		Active:                a.Active(),
	}
}

func (r assignmentRow) domain() domain.SectionAssignment {
	return domain.SectionAssignment{
		ID:                    r.ID,
		ScheduledEvaluationID: r.ScheduledEvaluationID,
		SectionCycleID:        r.SectionCycleID,
		SectionID:             r.SectionID,
		State:                 domain.StateOf(r.Active),
	}
}

type scoreBandRow struct {
	ID                    int64   `gorm:"primaryKey"`
	ScheduledEvaluationID int64   `gorm:"index;not null"`
	SectionID             *int64  `gorm:"index"`
	RangeStart            float64 `gorm:"not null"`
	RangeFin              float64 `gorm:"not null"`
	CorrectValue          float64 `gorm:"not null"`
	IncorrectValue        float64 `gorm:"not null"`
	BlankValue            float64 `gorm:"not null"`
	Note                  string  `gorm:"type:text"`
	Active                bool    `gorm:"not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (scoreBandRow) TableName() string { return "score_band_details" }

func scoreBandToRow(d domain.ScoreBandDetail) scoreBandRow {
	return scoreBandRow{
		ID:                    d.ID,
		ScheduledEvaluationID: d.ScheduledEvaluationID,
		SectionID:             domain.CloneID(d.SectionID),
		RangeStart:            d.RangeStart,
		RangeFin:              d.RangeFin,
		CorrectValue:          d.CorrectValue,
		IncorrectValue:        d.IncorrectValue,
		BlankValue:            d.BlankValue,
		Note:                  d.Note,
		Active:                d.Active,
	}
}

func (r scoreBandRow) domain() domain.ScoreBandDetail {
	return domain.ScoreBandDetail{
		ID:                    r.ID,
		ScheduledEvaluationID: r.ScheduledEvaluationID,
		SectionID:             r.SectionID,
		RangeStart:            r.RangeStart,
		RangeFin:              r.RangeFin,
		CorrectValue:          r.CorrectValue,
		IncorrectValue:        r.IncorrectValue,
		BlankValue:            r.BlankValue,
		Note:                  r.Note,
		Active:                r.Active,
	}
}

type answerKeyRow struct {
	ID                    int64    `gorm:"primaryKey"`
	ScheduledEvaluationID int64    `gorm:"index;not null"`
	ScoreBandDetailID     int64    `gorm:"index;not null"`
	QuestionOrder         int      `gorm:"not null"`
	Answer                string   `gorm:"size:1;not null"`
	Weight                *float64 `gorm:""`
	Version               int      `gorm:"not null;default:1"`
	Current               bool     `gorm:"not null"`
	Note                  string   `gorm:"type:text"`
	Active                bool     `gorm:"not null"`
	SiteID                int64
	CycleID               *int64
	SectionID             *int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (answerKeyRow) TableName() string { return "answer_keys" }

func answerKeyToRow(k domain.AnswerKey) answerKeyRow {
	return answerKeyRow{
		ID:                    k.ID,
		ScheduledEvaluationID: k.ScheduledEvaluationID,
		ScoreBandDetailID:     k.ScoreBandDetailID,
		QuestionOrder:         k.QuestionOrder,
		Answer:                k.Answer,
		Weight:                k.Weight,
		Version:               k.Version,
		Current:               k.Current,
		Note:                  k.Note,
		Active:                k.Active,
		SiteID:                k.SiteID,
		CycleID:               domain.CloneID(k.CycleID),
		SectionID:             domain.CloneID(k.SectionID),
	}
}

func (r answerKeyRow) domain() domain.AnswerKey {
	return domain.AnswerKey{
		ID:                    r.ID,
		ScheduledEvaluationID: r.ScheduledEvaluationID,
		ScoreBandDetailID:     r.ScoreBandDetailID,
		QuestionOrder:         r.QuestionOrder,
		Answer:                r.Answer,
		Weight:                r.Weight,
		Version:               r.Version,
		Current:               r.Current,
		Note:                  r.Note,
		Active:                r.Active,
		SiteID:                r.SiteID,
		CycleID:               r.CycleID,
		SectionID:             r.SectionID,
	}
}

type registrationRow struct {
	ID                    int64  `gorm:"primaryKey"`
	ScheduledEvaluationID int64  `gorm:"index;not null"`
	StudentID             int64  `gorm:"index:ix_registration_key,priority:3;not null"`
	SiteID                int64  `gorm:"index:ix_registration_key,priority:1;not null"`
	CycleID               int64  `gorm:"index:ix_registration_key,priority:2;not null"`
	SectionID             *int64 `gorm:"index"`
	Active                bool   `gorm:"not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (registrationRow) TableName() string { return "evaluation_registrations" }

func registrationToRow(r domain.EvaluationRegistration) registrationRow {
	return registrationRow{
		ID:                    r.ID,
		ScheduledEvaluationID: r.ScheduledEvaluationID,
		StudentID:             r.StudentID,
		SiteID:                r.SiteID,
		CycleID:               r.CycleID,
		SectionID:             domain.CloneID(r.SectionID),
		Active:                r.Active,
	}
}

func (r registrationRow) domain() domain.EvaluationRegistration {
	return domain.EvaluationRegistration{
		ID:                    r.ID,
		ScheduledEvaluationID: r.ScheduledEvaluationID,
		StudentID:             r.StudentID,
		SiteID:                r.SiteID,
		CycleID:               r.CycleID,
		SectionID:             r.SectionID,
		Active:                r.Active,
	}
}

type enrollmentRow struct {
	ID             int64  `gorm:"primaryKey"`
	StudentID      int64  `gorm:"index;not null"`
	SectionCycleID int64  `gorm:"index;not null"`
	SiteID         int64  `gorm:"index:ix_enrollment_scope,priority:1;not null"`
	CycleID        int64  `gorm:"index:ix_enrollment_scope,priority:2;not null"`
	SectionID      *int64 `gorm:"index:ix_enrollment_scope,priority:3"`
}

func (enrollmentRow) TableName() string { return "enrollments" }

func (r enrollmentRow) domain() domain.Enrollment {
	return domain.Enrollment{
		StudentID:      r.StudentID,
		SectionCycleID: r.SectionCycleID,
		SiteID:         r.SiteID,
		CycleID:        r.CycleID,
		SectionID:      r.SectionID,
	}
}

type siteRow struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:200;not null"`
}

func (siteRow) TableName() string { return "sites" }

type cycleRow struct {
	ID              int64  `gorm:"primaryKey"`
	Name            string `gorm:"size:200;not null"`
	Active          bool   `gorm:"not null"`
	EnrollmentOpen  string `gorm:"size:10"`
	EnrollmentClose string `gorm:"size:10"`
}

func (cycleRow) TableName() string { return "cycles" }

type sectionRow struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:200;not null"`
}

func (sectionRow) TableName() string { return "sections" }

type careerRow struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:200;not null"`
}

func (careerRow) TableName() string { return "careers" }

type sectionCycleRow struct {
	ID        int64  `gorm:"primaryKey"`
	CycleID   int64  `gorm:"index;not null"`
	SectionID *int64 `gorm:"index"`
	Name      string `gorm:"size:200"`
}

func (sectionCycleRow) TableName() string { return "section_cycles" }

func (r sectionCycleRow) domain() domain.SectionCycle {
	return domain.SectionCycle{ID: r.ID, CycleID: r.CycleID, SectionID: r.SectionID, Name: r.Name}
}

// tables lists every model migrated by Migrate.
func tables() []any {
	return []any{
		&evaluationRow{},
		&assignmentRow{},
		&scoreBandRow{},
		&answerKeyRow{},
		&registrationRow{},
		&enrollmentRow{},
		&siteRow{},
		&cycleRow{},
		&sectionRow{},
		&careerRow{},
		&sectionCycleRow{},
	}
}
