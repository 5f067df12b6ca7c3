// Package errors defines the domain error taxonomy shared across services:
// sentinel values for classification with errors.Is, and AppError for
// attaching HTTP status codes and human-readable detail.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSourceNotFound   = errors.New("source not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSnapshotCorrupt  = errors.New("snapshot corrupt")
	ErrRebuildInFlight  = errors.New("rebuild already in flight")
	ErrStoreUnavailable = errors.New("passage store unavailable")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status handlers should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRebuildInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
