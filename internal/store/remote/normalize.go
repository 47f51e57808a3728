package remote

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/numeric"
)

// envelopeKeys are the wrappers a listing or record may arrive in.
var envelopeKeys = []string{"data", "items", "results", "Data", "Items", "Results"}

// records unwraps a listing. An empty or null body is an empty listing and
// reported as domain.ErrNotFound.
func records(doc gjson.Result, entity string) ([]record, error) {
	list, ok := unwrapArray(doc, 2)
	if !ok {
		if !doc.Exists() || doc.Type == gjson.Null {
			return nil, fmt.Errorf("no %s: %w", entity, domain.ErrNotFound)
		}
		return nil, &domain.ShapeError{Entity: entity, Field: "[]"}
	}
	out := make([]record, 0, len(list))
	for _, item := range list {
		if !item.IsObject() {
			return nil, &domain.ShapeError{Entity: entity, Field: "{}"}
		}
		out = append(out, record{entity: entity, obj: item})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no %s: %w", entity, domain.ErrNotFound)
	}
	return out, nil
}

func unwrapArray(doc gjson.Result, depth int) ([]gjson.Result, bool) {
	if doc.IsArray() {
		return doc.Array(), true
	}
	if !doc.IsObject() || depth == 0 {
		return nil, false
	}
	for _, k := range envelopeKeys {
		if v := doc.Get(k); v.Exists() {
			return unwrapArray(v, depth-1)
		}
	}
	return nil, false
}

// single unwraps one record, accepting a bare object or an enveloped one.
func single(doc gjson.Result, entity string) (record, error) {
	for range 2 {
		if doc.IsObject() && (record{obj: doc}).get("id").Exists() {
			return record{entity: entity, obj: doc}, nil
		}
		if !doc.IsObject() {
			break
		}
		var next gjson.Result
		for _, k := range envelopeKeys {
			if v := doc.Get(k); v.Exists() {
				next = v
				break
			}
		}
		if !next.Exists() {
			break
		}
		doc = next
	}
	return record{}, &domain.ShapeError{Entity: entity, Field: "id"}
}

// record is one JSON object from the data service.
type record struct {
	entity string
	obj    gjson.Result
}

// get looks field up by its snake_case name and the camelCase and
// PascalCase spellings of it.
func (r record) get(field string) gjson.Result {
	for _, name := range spellings(field) {
		if v := r.obj.Get(name); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func spellings(snake string) []string {
	parts := strings.Split(snake, "_")
	var camel strings.Builder
	for i, p := range parts {
		if i == 0 || p == "" {
			camel.WriteString(p)
			continue
		}
		camel.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	c := camel.String()
	pascal := strings.ToUpper(c[:1]) + c[1:]
	names := []string{snake, c, pascal}
	if strings.HasSuffix(c, "Id") {
		names = append(names, strings.TrimSuffix(c, "Id")+"ID")
	}
	if strings.HasSuffix(pascal, "Id") {
		names = append(names, strings.TrimSuffix(pascal, "Id")+"ID")
	}
	return slices.Compact(names)
}

func null(v gjson.Result) bool { return !v.Exists() || v.Type == gjson.Null }

// id returns a required positive identifier.
func (r record) id(field string) (int64, error) {
	v := r.get(field)
	if null(v) {
		return 0, &domain.ShapeError{Entity: r.entity, Field: field}
	}
	n, ok := numeric.Parse(v.Value())
	if !ok || n <= 0 || n != float64(int64(n)) {
		return 0, &domain.ShapeError{Entity: r.entity, Field: field}
	}
	return int64(n), nil
}

// optID returns a nullable identifier; zero, negative, or malformed values are nil.
func (r record) optID(field string) *int64 {
	v := r.get(field)
	if null(v) {
		return nil
	}
	n, ok := numeric.Parse(v.Value())
	if !ok {
		return nil
	}
	return domain.ID(int64(n))
}

func (r record) int(field string) int64 {
	if id := r.optID(field); id != nil {
		return *id
	}
	return 0
}

func (r record) float(field string) float64 {
	if f := r.optFloat(field); f != nil {
		return *f
	}
	return 0
}

func (r record) optFloat(field string) *float64 {
	v := r.get(field)
	if null(v) {
		return nil
	}
	f, ok := numeric.Parse(v.Value())
	if !ok {
		return nil
	}
	return &f
}

func (r record) str(field string) string {
	v := r.get(field)
	if null(v) {
		return ""
	}
	return v.String()
}

// flag reads a boolean encoded as a JSON bool, a number, or a string.
func (r record) flag(field string, def bool) bool {
	v := r.get(field)
	if null(v) {
		return def
	}
	return v.Bool()
}

func decodeEvaluation(r record) (domain.ScheduledEvaluation, error) {
	id, err := r.id("id")
	if err != nil {
		return domain.ScheduledEvaluation{}, err
	}
	return domain.ScheduledEvaluation{
		ID:               id,
		SiteID:           r.int("site_id"),
		CycleID:          r.optID("cycle_id"),
		EvaluationTypeID: r.int("evaluation_type_id"),
		Name:             r.str("name"),
		StartDate:        r.str("start_date"),
		StartTime:        r.str("start_time"),
		EndTime:          r.str("end_time"),
		CareerID:         r.optID("career_id"),
		Active:           r.flag("active", true),
	}, nil
}

func decodeAssignment(r record) (domain.SectionAssignment, error) {
	id, err := r.id("id")
	if err != nil {
		return domain.SectionAssignment{}, err
	}
	cycleID, err := r.id("section_cycle_id")
	if err != nil {
		return domain.SectionAssignment{}, err
	}
	return domain.SectionAssignment{
		ID:                    id,
		ScheduledEvaluationID: r.int("scheduled_evaluation_id"),
		SectionCycleID:        cycleID,
		SectionID:             r.optID("section_id"),
		State:                 domain.StateOf(r.flag("active", true)),
	}, nil
}

func decodeScoreBand(r record) (domain.ScoreBandDetail, error) {
	id, err := r.id("id")
	if err != nil {
		return domain.ScoreBandDetail{}, err
	}
	return domain.ScoreBandDetail{
		ID:                    id,
		ScheduledEvaluationID: r.int("scheduled_evaluation_id"),
		SectionID:             r.optID("section_id"),
		RangeStart:            r.float("range_start"),
		RangeFin:              r.float("range_fin"),
		CorrectValue:          r.float("correct_value"),
		IncorrectValue:        r.float("incorrect_value"),
		BlankValue:            r.float("blank_value"),
		Note:                  r.str("note"),
		Active:                r.flag("active", true),
	}, nil
}

func decodeAnswerKey(r record) (domain.AnswerKey, error) {
	id, err := r.id("id")
	if err != nil {
		return domain.AnswerKey{}, err
	}
	answer, _ := domain.NormalizeAnswer(r.str("answer"))
	return domain.AnswerKey{
		ID:                    id,
		ScheduledEvaluationID: r.int("scheduled_evaluation_id"),
		ScoreBandDetailID:     r.int("score_band_detail_id"),
		QuestionOrder:         int(r.int("question_order")),
		Answer:                answer,
		Weight:                r.optFloat("weight"),
		Version:               max(int(r.int("version")), 1),
		Current:               r.flag("current", true),
		Note:                  r.str("note"),
		Active:                r.flag("active", true),
		SiteID:                r.int("site_id"),
		CycleID:               r.optID("cycle_id"),
		SectionID:             r.optID("section_id"),
	}, nil
}

func decodeRegistration(r record) (domain.EvaluationRegistration, error) {
	id, err := r.id("id")
	if err != nil {
		return domain.EvaluationRegistration{}, err
	}
	return domain.EvaluationRegistration{
		ID:                    id,
		ScheduledEvaluationID: r.int("scheduled_evaluation_id"),
		StudentID:             r.int("student_id"),
		SiteID:                r.int("site_id"),
		CycleID:               r.int("cycle_id"),
		SectionID:             r.optID("section_id"),
		Active:                r.flag("active", true),
	}, nil
}

func decodeEnrollment(r record) (domain.Enrollment, error) {
	student, err := r.id("student_id")
	if err != nil {
		return domain.Enrollment{}, err
	}
	return domain.Enrollment{
		StudentID:      student,
		SectionCycleID: r.int("section_cycle_id"),
		SiteID:         r.int("site_id"),
		CycleID:        r.int("cycle_id"),
		SectionID:      r.optID("section_id"),
	}, nil
}

func decodeSite(r record) (domain.Site, error) {
	id, err := r.id("id")
	return domain.Site{ID: id, Name: r.str("name")}, err
}

func decodeCycle(r record) (domain.Cycle, error) {
	id, err := r.id("id")
	return domain.Cycle{
		ID:              id,
		Name:            r.str("name"),
		Active:          r.flag("active", true),
		EnrollmentOpen:  r.str("enrollment_open"),
		EnrollmentClose: r.str("enrollment_close"),
	}, err
}

func decodeSection(r record) (domain.Section, error) {
	id, err := r.id("id")
	return domain.Section{ID: id, Name: r.str("name")}, err
}

func decodeCareer(r record) (domain.Career, error) {
	id, err := r.id("id")
	return domain.Career{ID: id, Name: r.str("name")}, err
}

func decodeSectionCycle(r record) (domain.SectionCycle, error) {
	id, err := r.id("id")
	if err != nil {
		return domain.SectionCycle{}, err
	}
	return domain.SectionCycle{
		ID:        id,
		CycleID:   r.int("cycle_id"),
		SectionID: r.optID("section_id"),
		Name:      r.str("name"),
	}, nil
}

// decodeAll converts every record, failing on the first unusable one.
func decodeAll[T any](recs []record, decode func(record) (T, error)) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		v, err := decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
