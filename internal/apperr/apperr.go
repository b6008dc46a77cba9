// Package apperr classifies engine failures so callers can tell a missing
// entity from a blocked transition or a backend outage.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeInvalidTransition Code = "invalid_transition"
	CodeForbidden         Code = "forbidden"
	CodePartialCommit     Code = "partial_commit"
	CodeBackend           Code = "backend"
	CodeInternal          Code = "internal"
)

// Error carries a code, the failing operation and a short user-facing message.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error without a cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Is reports whether any error in the chain carries code, not only the
// outermost one.
func Is(err error, code Code) bool {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Message returns the user-facing summary of err without internal detail.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal error"
}

var (
	// ErrNotFound is returned by stores when a record is absent.
	ErrNotFound = errors.New("record not found")
	// ErrStale is returned by stores when a compare-and-swap write loses.
	ErrStale = errors.New("record changed concurrently")
	// ErrDuplicate is returned by stores when a unique key is already taken.
	ErrDuplicate = errors.New("record already exists")
)
