// Package apierr defines the error taxonomy shared by all request
// handlers: validation, not-found, authentication, conflict, and
// service failures, each mapped to a stable HTTP status.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a request-visible failure. Operations return it through the
// regular error channel; handlers unwrap it with errors.As to build the
// response envelope.
type Error struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for logging; the cause is never
// serialized into a response.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches the originating error for log correlation.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// BadRequest reports missing or malformed input.
func BadRequest(message string, details ...string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Message: message, Errors: details}
}

// Unauthorized reports a failed or missing authentication credential.
func Unauthorized(message string) *Error {
	return &Error{StatusCode: http.StatusUnauthorized, Message: message}
}

// NotFound reports an absent referenced entity.
func NotFound(message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{StatusCode: http.StatusConflict, Message: message}
}

// Internal reports an unexpected dependency failure. The cause is kept
// for logging and discarded from the response.
func Internal(message string, cause error) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Message: message, cause: cause}
}

// From extracts the typed API error, or wraps an arbitrary error as an
// internal failure so every response carries the envelope.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("something went wrong", err)
}
