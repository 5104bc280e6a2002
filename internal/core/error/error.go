package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is the user-facing fallback when internal errors occur.
	SystemErrorMessage = "An unexpected error occurred. Please try again later."
	// QueryUnresolvedMessage is returned when no coin could be identified in a query.
	QueryUnresolvedMessage = "Could not identify cryptocurrency in query"
	// EmptyQueryMessage is returned for blank input.
	EmptyQueryMessage = "Query cannot be empty"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
)

// ErrQueryUnresolved signals that the analyzer produced no coin identifier.
// It crosses the workflow boundary as a client error and is never retried.
var ErrQueryUnresolved = errors.New("query unresolved")

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// QueryUnresolved builds the client error for an analyzer that returned no
// identifier.
func QueryUnresolved() *AppError {
	return New(ErrQueryUnresolved, http.StatusBadRequest, QueryUnresolvedMessage)
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
