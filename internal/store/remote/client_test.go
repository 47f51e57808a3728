package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/retry"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{Token: "secret", Retry: fastRetry()})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	_, err := New("not a url", Options{})
	require.Error(t, err)

	_, err = New("http://localhost", Options{Retry: retry.Config{MaxAttempts: -1}})
	require.Error(t, err)
}

func TestClient_NormalizesFieldSpellings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "snake case array",
			body: `[{"id": 4, "scheduled_evaluation_id": 9, "section_id": null, "range_start": 1, "range_fin": 10,
				"correct_value": "1,5", "incorrect_value": 0, "blank_value": 0, "active": true}]`,
		},
		{
			name: "camel case in data envelope",
			body: `{"data": [{"id": "4", "scheduledEvaluationId": 9, "rangeStart": 1, "rangeFin": 10,
				"correctValue": 1.5, "active": 1}]}`,
		},
		{
			name: "pascal case in nested envelope",
			body: `{"Data": {"items": [{"ID": 4, "ScheduledEvaluationID": 9, "RangeStart": "1", "RangeFin": "10",
				"CorrectValue": "1.5", "Active": "true"}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/evaluations/9/score-bands", r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			})

			bands, err := c.ListScoreBands(context.Background(), 9)
			require.NoError(t, err)
			require.Len(t, bands, 1)
			b := bands[0]
			assert.Equal(t, int64(4), b.ID)
			assert.Equal(t, int64(9), b.ScheduledEvaluationID)
			assert.Nil(t, b.SectionID)
			assert.Equal(t, 1.0, b.RangeStart)
			assert.Equal(t, 10.0, b.RangeFin)
			assert.Equal(t, 1.5, b.CorrectValue)
			assert.True(t, b.Active)
		})
	}
}

func TestClient_EmptyListingsReportNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "404", status: http.StatusNotFound, body: `{"error":"NOT_FOUND"}`},
		{name: "empty array", status: http.StatusOK, body: `[]`},
		{name: "empty envelope", status: http.StatusOK, body: `{"results": []}`},
		{name: "null", status: http.StatusOK, body: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.ListSectionAssignments(context.Background(), 1)
			require.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestClient_ShapeErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "object instead of list", body: `{"id": 1}`, field: "[]"},
		{name: "scalar item", body: `[1, 2]`, field: "{}"},
		{name: "missing id", body: `[{"section_cycle_id": 3}]`, field: "id"},
		{name: "fractional id", body: `[{"id": 1.5, "section_cycle_id": 3}]`, field: "id"},
		{name: "missing section cycle", body: `[{"id": 1}]`, field: "section_cycle_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.ListSectionAssignments(context.Background(), 1)
			require.ErrorIs(t, err, domain.ErrShape)
			var se *domain.ShapeError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestClient_RetriesServerErrorsOnly(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
		retryable bool
	}{
		{name: "recovers after 503", statuses: []int{503, 200}, wantCalls: 2},
		{name: "recovers after 429", statuses: []int{429, 200}, wantCalls: 2},
		{name: "exhausts on repeated 500", statuses: []int{500, 500, 500}, wantCalls: 3, wantErr: true, retryable: true},
		{name: "400 is not retried", statuses: []int{400}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = io.WriteString(w, `{"id": 7, "name": "Midterm"}`)
					return
				}
				_, _ = io.WriteString(w, `{"message": "upstream unavailable"}`)
			})

			e, err := c.GetEvaluation(context.Background(), 7)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "Midterm", e.Name)
				return
			}
			require.ErrorIs(t, err, domain.ErrRemote)
			assert.Contains(t, err.Error(), "upstream unavailable")
			assert.Equal(t, tt.retryable, errors.Is(err, retry.ErrExhausted))
		})
	}
}

func TestClient_WritesSendJSONAndIdempotencyKey(t *testing.T) {
	var keys []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["active"])
		assert.EqualValues(t, 3, body["section_cycle_id"])

		if len(keys) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data": {"id": 11, "sectionCycleId": 3, "active": false}}`)
	})

	a, err := c.CreateSectionAssignment(context.Background(), domain.SectionAssignment{
		ScheduledEvaluationID: 9, SectionCycleID: 3, State: domain.StateInactive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), a.ID)
	assert.Equal(t, domain.StateInactive, a.State)

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, int64(1), c.RetryStats().SuccessfulRetries)
}

func TestClient_CreateRegistrationConflictIsDuplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message": "already registered"}`)
	})

	_, err := c.CreateRegistration(context.Background(), domain.EvaluationRegistration{StudentID: 5, Active: true})
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	require.ErrorIs(t, err, domain.ErrRemote)
}

func TestClient_QueryParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrollments", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("site_id"))
		assert.Equal(t, "2", r.URL.Query().Get("cycle_id"))
		assert.False(t, r.URL.Query().Has("section_id"))
		_, _ = io.WriteString(w, `{"items": [{"StudentId": 5, "SectionCycleId": 3, "SiteId": 1, "CycleId": 2}]}`)
	})

	got, err := c.ListEnrollments(context.Background(), domain.EnrollmentScope{SiteID: 1, CycleID: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].StudentID)
	assert.Equal(t, int64(3), got[0].SectionCycleID)
}

func TestClient_ListEvaluationsFiltersLocally(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id": 1, "site_id": 1, "cycle_id": 2, "active": true},
			{"id": 2, "site_id": 1, "cycle_id": 3, "active": true},
			{"id": 3, "site_id": 1, "cycle_id": 2, "active": false}
		]`)
	})

	got, err := c.ListEvaluations(context.Background(), domain.EvaluationFilter{CycleID: 2, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	_, err = c.ListEvaluations(context.Background(), domain.EvaluationFilter{CycleID: 9})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_RateLimitHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 1, "name": "North"}]`)
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{RequestsPerSecond: 0.001, Burst: 1, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = c.ListSites(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListSites(ctx)
	require.Error(t, err)
}

func TestSpellings(t *testing.T) {
	assert.Equal(t,
		[]string{"section_cycle_id", "sectionCycleId", "SectionCycleId", "sectionCycleID", "SectionCycleID"},
		spellings("section_cycle_id"))
	assert.Equal(t, []string{"name", "Name"}, spellings("name"))
	assert.Equal(t, []string{"id", "Id", "ID"}, spellings("id"))
}

func TestClient_UpdateEvaluationSendsClearedReferencesAsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/evaluations/7", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 0, body["cycle_id"])
		assert.EqualValues(t, 4, body["career_id"])
		assert.Equal(t, "Final", body["name"])
		_, _ = io.WriteString(w, `{"id": 7, "name": "Final", "career_id": 4}`)
	})

	e, err := c.UpdateEvaluation(context.Background(), domain.ScheduledEvaluation{ID: 7, Name: "Final", CareerID: domain.ID(4)})
	require.NoError(t, err)
	assert.Nil(t, e.CycleID)
	assert.Equal(t, int64(4), *e.CareerID)
}
