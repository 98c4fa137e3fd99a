package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/saschahuberzh/SeoulChat/internal/auth"
	"github.com/saschahuberzh/SeoulChat/internal/chat"
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/validator"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func newApiError(statusCode int) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    strings.ToLower(http.StatusText(statusCode)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

// NewValidationError reports why a request was rejected. Only messages of
// validation failures reach the client.
func NewValidationError(err error) *ApiError {
	e := NewBadRequestError()
	e.Err = err

	var valErr *validator.ValidationError
	switch {
	case errors.As(err, &valErr):
		e.Message = valErr.Error()
	case errors.Is(err, validator.ErrMalformedBody):
		e.Message = "malformed request body"
	}

	return e
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewTooManyRequestsError() *ApiError {
	return newApiError(http.StatusTooManyRequests)
}

func NewServiceUnavailableError(err error) *ApiError {
	e := newApiError(http.StatusServiceUnavailable)
	e.Err = err
	return e
}

// toApiError maps errors returned by the domain packages to responses.
func toApiError(err error) *ApiError {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, chat.ErrInvalidInput), errors.Is(err, chat.ErrSelfChat):
		e := NewBadRequestError()
		e.Message = strings.ToLower(rootMessage(err))
		e.Err = err
		return e
	case errors.Is(err, auth.ErrUnauthenticated):
		return NewUnauthorizedError()
	case errors.Is(err, chat.ErrForbidden):
		return NewForbiddenError()
	case errors.Is(err, chat.ErrNotMember), errors.Is(err, database.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, database.ErrConflict):
		return NewConflictError()
	default:
		return NewInternalServerError(err)
	}
}

// rootMessage strips the wrapping context added on the way up, keeping
// only the innermost detail.
func rootMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
