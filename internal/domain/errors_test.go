package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{status: 0, want: true},
		{status: http.StatusBadRequest, want: false},
		{status: http.StatusConflict, want: false},
		{status: http.StatusTooManyRequests, want: true},
		{status: http.StatusInternalServerError, want: true},
		{status: http.StatusServiceUnavailable, want: true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := &RemoteError{Op: "create", Status: tt.status, Message: "boom"}
			assert.Equal(t, tt.want, err.Retryable())
			assert.Equal(t, tt.want, IsRetryable(fmt.Errorf("wrapped: %w", err)))
		})
	}
}

func TestTypedErrors_Is(t *testing.T) {
	cause := errors.New("connection reset")
	remote := &RemoteError{Op: "update answer key", Cause: cause}

	assert.ErrorIs(t, remote, ErrRemote)
	assert.ErrorIs(t, remote, cause)
	assert.Equal(t, "update answer key: connection reset", remote.Error())

	shape := &ShapeError{Entity: "answer_key", Field: "id"}
	assert.ErrorIs(t, fmt.Errorf("list: %w", shape), ErrShape)
	assert.NotErrorIs(t, shape, ErrRemote)

	verr := NewValidationError("score_band", Issue{Field: "range_fin", Message: "must be >= range_start"})
	assert.ErrorIs(t, verr, ErrValidation)
	assert.Contains(t, verr.Error(), "range_fin: must be >= range_start")
	assert.False(t, IsRetryable(verr))
}

func TestValidationError_OrNil(t *testing.T) {
	assert.NoError(t, NewValidationError("x").OrNil())

	var nilErr *ValidationError
	assert.NoError(t, nilErr.OrNil())

	order := 3
	verr := NewValidationError("answer_key")
	verr.Add(Issue{Field: "answer", Row: 2, QuestionOrder: &order, Message: "must be one of A-H"})
	require.Error(t, verr.OrNil())
	assert.Equal(t, "invalid answer_key: answer[row 2][question 3]: must be one of A-H", verr.Error())
}

func TestNotFoundAsEmpty(t *testing.T) {
	items, err := NotFoundAsEmpty[int](nil, fmt.Errorf("list: %w", ErrNotFound))
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	items, err = NotFoundAsEmpty([]int{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, items)

	boom := errors.New("boom")
	_, err = NotFoundAsEmpty[int](nil, boom)
	assert.ErrorIs(t, err, boom)
}

func TestSameID(t *testing.T) {
	assert.True(t, SameID(nil, nil))
	assert.True(t, SameID(ID(3), ID(3)))
	assert.False(t, SameID(ID(3), nil))
	assert.False(t, SameID(ID(3), ID(4)))
	assert.Nil(t, ID(0))
}
