// Package domainerrors defines the error vocabulary shared by services and
// transport. Services return these; the HTTP layer translates codes to
// status codes and stable machine-readable bodies without leaking internals.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-stable error code surfaced to API callers.
type Code string

const (
	CodeInvalidEmail        Code = "INVALID_EMAIL"
	CodeIncompleteAgentData Code = "INCOMPLETE_AGENT_DATA"
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeTimeout             Code = "TIMEOUT"
	CodeInternal            Code = "INTERNAL"
)

// Error pairs a stable code with a human-readable message. The wrapped cause
// stays server-side; callers only ever see Code, Message and, for server
// faults, the Correlation id that links the response to server logs.
type Error struct {
	Code        Code
	Message     string
	Correlation string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithCorrelation returns a copy of the error carrying a support reference
// id. The id is safe to expose; the wrapped cause is not.
func (e *Error) WithCorrelation(id string) *Error {
	copied := *e
	copied.Correlation = id
	return &copied
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// From extracts the domain error from err, or nil if there is none.
func From(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// ToHTTPStatus maps a code to its HTTP status. Unknown codes map to 500 so a
// missing entry can never weaken an error into a success.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidEmail, CodeIncompleteAgentData, CodeBadRequest:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
