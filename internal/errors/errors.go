// Package errors implements the task-tracking service's typed error
// taxonomy: every failure the engine surfaces carries a stable Code,
// a stable ErrorCode integer, and the HTTP status the API layer should
// render it as.
package errors

import (
	"fmt"
)

// Code identifies an error's place in the taxonomy. Values are stable
// across releases; they are serialized verbatim in HTTP error bodies.
type Code string

const (
	InvalidArgument Code = "invalid_argument"
	NotFound        Code = "not_found"
	Conflict        Code = "conflict"
	Internal        Code = "internal"
)

// errorCodes assigns each taxonomy entry a stable positive integer,
// independent of the human-readable Code string.
var errorCodes = map[Code]int{
	InvalidArgument: 1001,
	NotFound:        1002,
	Conflict:        1003,
	Internal:        1004,
}

var httpStatus = map[Code]int{
	InvalidArgument: 400,
	NotFound:        404,
	Conflict:        409,
	Internal:        500,
}

// Error is a structured error carrying taxonomy metadata alongside a
// human-readable message and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrorCode returns the stable positive integer for this error's Code.
func (e *Error) ErrorCode() int {
	return errorCodes[e.Code]
}

// HTTPStatus returns the HTTP status the API layer should render this
// error as.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return 500
}

// New creates an error in the given taxonomy bucket.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error in the given taxonomy bucket with a formatted
// message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches taxonomy metadata to an existing error. Returns nil if
// err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Invalid creates an invalid_argument error.
func Invalid(message string) *Error {
	return New(InvalidArgument, message)
}

// Invalidf creates an invalid_argument error with a formatted message.
func Invalidf(format string, args ...interface{}) *Error {
	return Newf(InvalidArgument, format, args...)
}

// NotFoundErr creates a not_found error.
func NotFoundErr(message string) *Error {
	return New(NotFound, message)
}

// NotFoundf creates a not_found error with a formatted message.
func NotFoundf(format string, args ...interface{}) *Error {
	return Newf(NotFound, format, args...)
}

// ConflictErr creates a conflict error.
func ConflictErr(message string) *Error {
	return New(Conflict, message)
}

// Conflictf creates a conflict error with a formatted message.
func Conflictf(format string, args ...interface{}) *Error {
	return Newf(Conflict, format, args...)
}

// InternalErr wraps an unexpected failure (store errors, serialization
// failures) as an internal error.
func InternalErr(err error, message string) *Error {
	return Wrap(err, Internal, message)
}

// InternalErrf wraps an unexpected failure with a formatted message.
func InternalErrf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, Internal, fmt.Sprintf(format, args...))
}

// CodeOf extracts the taxonomy Code from err, defaulting to Internal
// for errors that were never typed.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Internal
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}
