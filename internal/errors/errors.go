// Package errors defines the failure kinds returned by the note store.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies a failure so callers can decide to surface or ignore it.
type Code string

const (
	// ErrNotFound is returned when a note, file or revision does not exist.
	// It is the normal "absent" result, not a fault.
	ErrNotFound Code = "NOT_FOUND"
	// ErrInvalidArgument is returned when an input such as a note id is malformed.
	ErrInvalidArgument Code = "INVALID_ARGUMENT"
	// ErrStorage is returned when the file storage backend fails.
	ErrStorage Code = "STORAGE_ERROR"
	// ErrHistory is returned when the version control backend fails.
	ErrHistory Code = "HISTORY_ERROR"
	// ErrInternal is returned for failures without a more specific kind.
	ErrInternal Code = "INTERNAL_ERROR"
)

// Error is a failure with a kind and the operation that produced it.
type Error struct {
	code       Code
	op         string
	message    string
	wrappedErr error
}

// New creates a new Error.
func New(code Code, op, message string) *Error {
	return &Error{code: code, op: op, message: message}
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.message
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", msg, e.wrappedErr)
	}
	return msg
}

// Code returns the failure kind.
func (e *Error) Code() Code {
	return e.code
}

// Op returns the store operation that failed.
func (e *Error) Op() string {
	return e.op
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is matches another *Error with the same code, so errors.Is(err, NotFound("", ""))
// style checks work without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.code == e.code && t.op == "" && t.message == ""
}

// Sentinels usable with errors.Is.
var (
	NotFoundErr = &Error{code: ErrNotFound}
	StorageErr  = &Error{code: ErrStorage}
	HistoryErr  = &Error{code: ErrHistory}
	InvalidErr  = &Error{code: ErrInvalidArgument}
)

// NotFound creates a NOT_FOUND error for the named resource.
func NotFound(op, resource string) *Error {
	return New(ErrNotFound, op, resource+" not found")
}

// InvalidArgument creates an INVALID_ARGUMENT error.
func InvalidArgument(op, message string) *Error {
	return New(ErrInvalidArgument, op, message)
}

// Storage creates a STORAGE_ERROR wrapping err.
func Storage(op, message string, err error) *Error {
	return New(ErrStorage, op, message).Wrap(err)
}

// History creates a HISTORY_ERROR wrapping err.
func History(op, message string, err error) *Error {
	return New(ErrHistory, op, message).Wrap(err)
}

// CodeOf returns the kind of the first *Error in err's chain, or ErrInternal.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return ErrInternal
}

// IsNotFound reports whether err is a NOT_FOUND failure.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrNotFound
}
