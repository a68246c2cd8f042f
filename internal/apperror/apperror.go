// Package apperror defines the error taxonomy shared by every layer.
//
// Layers below the HTTP boundary never choose status codes. They return an
// *AppError that wraps one of the sentinels below, and handler.writeError maps
// the sentinel to a status:
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrNotFound     → 404
//	ErrUpstream     → 500
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUpstream     = errors.New("upstream error")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel (ErrNotFound, ErrValidation, ...)
	Cause   error  // underlying error, if any
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is(err, ErrUpstream)
// and errors.Is(err, context.Canceled) both work on the same value.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// Exhausted reports a bounded search that ended without a match.
func Exhausted(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Upstream wraps a failure of the GitHub API (transport error, 4xx/5xx,
// rate limiting). The message names the operation; the cause is kept for logs.
func Upstream(operation string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Cause:   cause,
		Message: operation,
	}
}

// Unauthorized returns an AppError for a missing or invalid session.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// IsUpstream reports whether err is (or wraps) an upstream failure.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
