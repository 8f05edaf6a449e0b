// Package refineerr provides the abstract error kinds used across the
// orchestration core, following the teacher's PermanentError/Unwrap shape
// from internal/retry.
package refineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the abstract error kinds from the error handling design:
// not a concrete type name, a classification used to pick an HTTP status
// and an event payload.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTimeout             Kind = "timeout"
	KindStorageError        Kind = "storage"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// Error wraps a cause with an abstract Kind for status-mapping and event
// encoding, without losing the underlying error for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts a *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err, or KindInternal if err does not
// carry one of our typed errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
