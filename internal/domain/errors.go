package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors shared by every layer. Typed errors below report
// errors.Is against the matching sentinel so callers never need errors.As
// just to classify a failure.
var (
	// ErrValidation indicates input that was rejected before any store call.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that the requested record or listing does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRemote indicates that a create, update, or delete against the data service failed.
	ErrRemote = errors.New("remote operation failed")

	// ErrShape indicates a data service response that could not be normalized into an entity.
	ErrShape = errors.New("unexpected response shape")

	// ErrDuplicateRegistration indicates that an active registration already exists for
	// the (site, cycle, student) key.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrConflict indicates a create that collides with an existing logical key.
	ErrConflict = errors.New("conflicting record")
)

// Issue is a single rejected field or row.
type Issue struct {
	// Field names the offending input field using its JSON name.
	Field string `json:"field"`

	// Row is the 1-based position of the offending draft, or 0 when not row-based.
	Row int `json:"row,omitempty"`

	// QuestionOrder identifies the question for answer key issues.
	QuestionOrder *int `json:"question_order,omitempty"`

	// Value echoes the rejected input when it is safe to do so.
	Value string `json:"value,omitempty"`

	Message string `json:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Field)
	if i.Row > 0 {
		fmt.Fprintf(&b, "[row %d]", i.Row)
	}
	if i.QuestionOrder != nil {
		fmt.Fprintf(&b, "[question %d]", *i.QuestionOrder)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// ValidationError lists every problem found with an input. It is always
// returned before any write is attempted.
type ValidationError struct {
	Entity string  `json:"entity"`
	Issues []Issue `json:"issues"`
}

// NewValidationError builds a ValidationError for entity with the given issues.
func NewValidationError(entity string, issues ...Issue) *ValidationError {
	return &ValidationError{Entity: entity, Issues: issues}
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("invalid %s", e.Entity)
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends an issue.
func (e *ValidationError) Add(is Issue) { e.Issues = append(e.Issues, is) }

// OrNil returns nil when no issues were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// RemoteError describes a failed call against the data service.
// Status is 0 when the request never produced an HTTP response.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Cause   error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *RemoteError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// Retryable reports whether repeating the call may succeed.
// Transport failures, throttling, and server errors are retryable.
func (e *RemoteError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// ShapeError reports a response missing a field required to build Entity.
type ShapeError struct {
	Entity string
	Field  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected response shape for %s: missing or invalid %q", e.Entity, e.Field)
}

// Is reports whether target is ErrShape.
func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// IsRetryable reports whether err is a RemoteError that may succeed on retry.
func IsRetryable(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// NotFoundAsEmpty converts a listing's ErrNotFound into an empty result.
func NotFoundAsEmpty[T any](items []T, err error) ([]T, error) {
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
