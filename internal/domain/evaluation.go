// Package domain provides the core types of academic evaluation scheduling:
// scheduled evaluations, their section assignments, score bands, answer keys,
// and student registrations. It also defines the error taxonomy shared by the
// stores, services, and transport layers.
//
// Identifiers are int64 values assigned by the data service. Nullable
// references are *int64; nil means "none" (for example a global score band
// that applies to every section).
package domain

import (
	"fmt"
	"time"
)

// Layouts for the date and time strings carried by ScheduledEvaluation.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ScheduledEvaluation is an evaluation placed on the calendar of a site.
// It owns its section assignments and score bands by foreign key.
type ScheduledEvaluation struct {
	ID int64 `json:"id"`

	SiteID int64 `json:"site_id" validate:"gt=0"`

	// CycleID is nil when the evaluation is not tied to an academic cycle.
	CycleID *int64 `json:"cycle_id"`

	EvaluationTypeID int64 `json:"evaluation_type_id" validate:"gt=0"`

	Name string `json:"name" validate:"required,max=200"`

	// StartDate uses DateLayout.
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`

	// StartTime and EndTime use TimeLayout; EndTime must be after StartTime.
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`

	CareerID *int64 `json:"career_id"`

	Active bool `json:"active"`
}

// Validate checks field constraints and that the evaluation ends after it starts.
// All problems are reported together in a *ValidationError.
func (e *ScheduledEvaluation) Validate() error {
	verr := NewValidationError("scheduled_evaluation")
	if err := validate.Struct(e); err != nil {
		appendFieldErrors(verr, err)
		return verr
	}

	start, _ := time.Parse(TimeLayout, e.StartTime)
	end, _ := time.Parse(TimeLayout, e.EndTime)
	if !end.After(start) {
		verr.Add(Issue{
			Field:   "end_time",
			Value:   e.EndTime,
			Message: fmt.Sprintf("must be after start_time %s", e.StartTime),
		})
	}
	return verr.OrNil()
}

// Window returns the start and end instants of the evaluation in loc.
func (e *ScheduledEvaluation) Window(loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.StartDate+" "+e.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.StartDate+" "+e.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end: %w", err)
	}
	return start, end, nil
}

// EvaluationFilter narrows a ScheduledEvaluation listing. Zero fields are ignored.
type EvaluationFilter struct {
	SiteID  int64 `query:"site_id"`
	CycleID int64 `query:"cycle_id"`

	// ActiveOnly excludes inactive evaluations.
	ActiveOnly bool `query:"active_only"`
}

// Matches reports whether e satisfies the filter.
func (f EvaluationFilter) Matches(e ScheduledEvaluation) bool {
	if f.SiteID > 0 && e.SiteID != f.SiteID {
		return false
	}
	if f.CycleID > 0 && (e.CycleID == nil || *e.CycleID != f.CycleID) {
		return false
	}
	if f.ActiveOnly && !e.Active {
		return false
	}
	return true
}
