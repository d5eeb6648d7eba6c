package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindOutOfStock
	KindUpstream
)

// Error is a kind-tagged error carried from services to the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kind-tagged error with a client-visible message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports missing or malformed input.
func Validation(message string) *Error { return New(KindValidation, message) }

// NotFound reports an absent referenced id.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Forbidden reports an authenticated but unentitled caller.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// Conflict reports a duplicate (email, review) violation.
func Conflict(message string) *Error { return New(KindConflict, message) }

// OutOfStock reports insufficient stock for a requested line.
func OutOfStock(message string) *Error { return New(KindOutOfStock, message) }

// Upstream reports a failed call to an external provider.
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// Internal reports an unexpected store or infrastructure failure.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf extracts the kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
