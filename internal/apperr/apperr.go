// Package apperr carries typed application failures across layer
// boundaries. Errors are tagged with a Kind at the point of failure and
// mapped to HTTP statuses exactly once, at the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindCapacity
	KindInternal
)

type Error struct {
	Kind    Kind
	Code    string
	Message string

	// Available and Requested are set on KindCapacity errors so callers
	// can render a precise message without re-reading inventory.
	Available int
	Requested int

	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Code + ": " + e.err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Authentication(code, message string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: message}
}

func Authorization(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Capacity(available, requested int) *Error {
	return &Error{
		Kind:      KindCapacity,
		Code:      "insufficient_tickets",
		Message:   fmt.Sprintf("Not enough tickets available. Available: %d, Requested: %d", available, requested),
		Available: available,
		Requested: requested,
	}
}

func Internal(code string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: "internal server error", err: err}
}

// From extracts a tagged error from an error chain. The boolean is false
// for untagged errors, which callers must treat as internal faults.
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
