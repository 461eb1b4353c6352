// Package domainerrors provides coded domain errors.
//
// Services return these so transport layers can map failures to responses
// without string matching. Stores return pkg/platform/sentinel errors instead;
// services translate them into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeNotFound: the referenced application, traveler, product, or field
	// does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput: the payload references unknown fields, omits required
	// answers, or violates a field constraint.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest: the request itself is malformed (bad JSON, bad query
	// parameter) before domain validation applies.
	CodeBadRequest Code = "bad_request"
	// CodeConflict: the operation collides with existing state (duplicate
	// name, answer outside the allowed scope when rejection is required).
	CodeConflict Code = "conflict"
	// CodeStateConflict: the application's status does not permit the
	// operation (e.g. deleting a non-draft application).
	CodeStateConflict Code = "state_conflict"
	// CodeInvariantViolation: an aggregate invariant check failed. Usually
	// translated to CodeConflict or CodeStateConflict before it reaches a
	// caller.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized: missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: authenticated but not allowed.
	CodeForbidden Code = "forbidden"
	// CodeInternal: unexpected infrastructure failure. The message is logged
	// but never surfaced to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Compare with HasCode, not type assertions.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Code returns the error's classification code.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the human-readable description without the code prefix.
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.code == code
	}
	return false
}

// Is reports whether err carries the given code. Alias of HasCode kept for
// call-site readability in handlers.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so unexpected failures never leak details to callers.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.code
	}
	return CodeInternal
}
