// Package engineerr defines the error kinds the check/update engine and
// the agent HTTP surface classify failures into, so callers can branch on
// errors.Is instead of string matching.
package engineerr

import "errors"

// Kind is a coarse error classification.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindEngineError        Kind = "engine_error"
	KindTransportError     Kind = "transport_error"
	KindTimeout            Kind = "timeout"
	KindValidationError    Kind = "validation_error"
	KindInvariantViolation Kind = "invariant_violation"
	KindInternal           Kind = "internal"
)

// Sentinel errors usable with errors.Is; wrap one of these with %w to
// attach detail while keeping the kind classifiable.
var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrEngineError        = &Error{Kind: KindEngineError, Message: "engine error"}
	ErrTransportError     = &Error{Kind: KindTransportError, Message: "transport error"}
	ErrTimeout            = &Error{Kind: KindTimeout, Message: "timeout"}
	ErrValidationError    = &Error{Kind: KindValidationError, Message: "validation error"}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation, Message: "invariant violation"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal error"}
)

// Error is a classified engine/agent error. Detail and Stdout/Stderr are
// carried losslessly to the agent HTTP response per spec.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Stdout  string
	Stderr  string
	wrapped error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is makes errors.Is(err, ErrXxx) match any *Error with the same Kind,
// not just the sentinel pointer itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Wrap returns a new *Error of the given kind, carrying err as detail and
// as the wrapped cause for errors.Unwrap/errors.As.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: string(kind), Detail: err.Error(), wrapped: err}
}

// New returns a new *Error of the given kind with the given message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, else
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
