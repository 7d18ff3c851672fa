// Package apperr defines the error kinds services report to their callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	// KindInternal is a store failure or an unexpected condition.
	KindInternal Kind = iota
	// KindBadRequest is correctable by the caller: missing rows, short stock,
	// conflicting orders, invalid input.
	KindBadRequest
	// KindReferentialIntegrity means a delete was blocked by dependent rows.
	KindReferentialIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindReferentialIntegrity:
		return "referential_integrity"
	default:
		return "internal"
	}
}

// Error is a domain error with an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequest builds a caller-correctable error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

// BadRequestWrap builds a caller-correctable error that keeps its cause.
func BadRequestWrap(err error, msg string) *Error {
	return &Error{Kind: KindBadRequest, Msg: msg, Err: err}
}

// Internal wraps a failure the caller cannot fix.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// Referential reports a delete blocked by dependent rows.
func Referential(msg string, err error) *Error {
	return &Error{Kind: KindReferentialIntegrity, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message of err. Causes of internal errors
// are not exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return e.Msg
		}
		return e.Error()
	}
	return "internal error"
}

func IsBadRequest(err error) bool  { return KindOf(err) == KindBadRequest }
func IsReferential(err error) bool { return KindOf(err) == KindReferentialIntegrity }
