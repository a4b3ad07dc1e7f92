package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for transport mapping.
type Kind string

const (
	KindInvalidInput     Kind = "INVALID_INPUT"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindForbidden        Kind = "FORBIDDEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindInvalidState     Kind = "INVALID_STATE_TRANSITION"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	KindInternal         Kind = "INTERNAL_ERROR"
)

// Error is a typed, caller-visible error carrying a kind, a machine code and optional details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a domain error with the same code.
// This lets sentinel errors be matched after WithMessage/WithDetails copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithMessage returns a copy of the error with a new message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithDetails returns a copy of the error with the given details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of the error wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// New creates a domain error.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// NewValidationError creates an invalid-input error.
func NewValidationError(msg string) *Error {
	return New(KindInvalidInput, "BAD_REQUEST", msg)
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(msg string) *Error {
	return New(KindUnauthorized, "UNAUTHORIZED", msg)
}

// NewStoreUnavailableError wraps a persistence connectivity failure.
func NewStoreUnavailableError(cause error) *Error {
	return New(KindStoreUnavailable, "STORE_UNAVAILABLE", "booking store unavailable").Wrap(cause)
}

// KindOf returns the kind of err, or KindInternal when err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
