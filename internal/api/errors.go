package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ahrav/go-proctor/internal/domain"
)

// Error codes of the JSON error body.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeDuplicate  = "DUPLICATE"
	CodeConflict   = "CONFLICT"
	CodeRemote     = "REMOTE_ERROR"
	CodeShape      = "SHAPE_ERROR"
	CodeBadRequest = "BAD_REQUEST"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorBody is the response body of every failed request.
type ErrorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Entity  string         `json:"entity,omitempty"`
	Issues  []domain.Issue `json:"issues,omitempty"`
}

// errorStatus maps err onto a status and body.
func errorStatus(err error) (int, ErrorBody) {
	var (
		verr  *domain.ValidationError
		shape *domain.ShapeError
		httpE *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorBody{Error: CodeValidation, Entity: verr.Entity, Issues: verr.Issues}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: CodeNotFound}
	case errors.Is(err, domain.ErrDuplicateRegistration):
		return http.StatusConflict, ErrorBody{Error: CodeDuplicate, Message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorBody{Error: CodeConflict, Message: err.Error()}
	case errors.As(err, &shape):
		return http.StatusBadGateway, ErrorBody{Error: CodeShape, Message: err.Error()}
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway, ErrorBody{Error: CodeRemote, Message: err.Error()}
	case errors.As(err, &httpE):
		code := CodeBadRequest
		switch {
		case httpE.Code == http.StatusNotFound:
			code = CodeNotFound
		case httpE.Code >= http.StatusInternalServerError:
			code = CodeInternal
		}
		return httpE.Code, ErrorBody{Error: code, Message: fmt.Sprint(httpE.Message)}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: CodeInternal}
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.ErrorContext(c.Request().Context(), "failed to write error response", "error", err)
	}
}

// pathID reads a positive identifier from path parameter name.
func pathID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("path", domain.Issue{Field: name, Value: raw, Message: "must be a positive integer"})
	}
	return id, nil
}

// bind decodes the request into v, reporting malformed input as a
// validation error.
func bind(c echo.Context, entity string, v any) error {
	if err := c.Bind(v); err != nil {
		msg := err.Error()
		var httpE *echo.HTTPError
		if errors.As(err, &httpE) {
			msg = fmt.Sprint(httpE.Message)
		}
		return domain.NewValidationError(entity, domain.Issue{Field: "body", Message: msg})
	}
	return nil
}

// listing answers items, or 404 when the listing is empty.
func listing[T any](c echo.Context, items []T, err error) error {
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return domain.ErrNotFound
	}
	return c.JSON(http.StatusOK, items)
}
