package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrResourceNotFound  = errors.New("resource description not found")
	ErrSecondaryResource = errors.New("secondary resource cannot be targeted directly")
	ErrValidation        = errors.New("validation error")
	ErrIndexNotFound     = errors.New("index not found")
	ErrJobNotFound       = errors.New("job not found")
	ErrEngineFailure     = errors.New("search engine operation failed")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// AppError wraps a sentinel error with a human-readable message and the
// HTTP status code the admin API should respond with.
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

// Validation returns an AppError for a request validation failure. These
// are reported synchronously and imply no side effects were performed.
func Validation(message string) *AppError {
	return New(ErrValidation, http.StatusBadRequest, message)
}

// Validationf formats a validation failure message.
func Validationf(format string, args ...any) *AppError {
	return Newf(ErrValidation, http.StatusBadRequest, format, args...)
}

// IsValidation reports whether err is a request validation failure, as
// opposed to a runtime failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrSecondaryResource)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrResourceNotFound),
		errors.Is(err, ErrSecondaryResource):
		return http.StatusBadRequest
	case errors.Is(err, ErrEngineFailure), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
