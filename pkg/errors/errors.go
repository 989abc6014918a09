// Package errors provides the structured error taxonomy surfaced by keyfs
// operations. Callers see a fully classified terminal error; retry and
// backoff stay internal to the storage layer.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies a terminal keyfs error.
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeAccessDenied  Code = "ACCESS_DENIED"
	CodeThrottled     Code = "THROTTLED"
	CodeInvalidConfig Code = "INVALID_CONFIG"
	CodeInternal      Code = "INTERNAL"
)

// Error is a classified keyfs error. Op names the filesystem operation that
// failed and Path the URI or bucket it was applied to.
type Error struct {
	Code    Code
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Path, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, so errors.Is(err, &Error{Code: CodeNotFound})
// works across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if stderrors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New builds a classified error.
func New(code Code, op, path, message string) *Error {
	return &Error{Code: code, Op: op, Path: path, Message: message}
}

// Wrap builds a classified error around a cause.
func Wrap(code Code, op, path string, cause error) *Error {
	return &Error{Code: code, Op: op, Path: path, Cause: cause}
}

// NotFound reports an absent object or bucket.
func NotFound(op, path string, cause error) *Error {
	return &Error{Code: CodeNotFound, Op: op, Path: path, Cause: cause}
}

// Conflict reports an operation refused because it would clobber existing
// state, e.g. touchz against a non-empty object.
func Conflict(op, path, message string) *Error {
	return &Error{Code: CodeConflict, Op: op, Path: path, Message: message}
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err is classified NOT_FOUND.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
