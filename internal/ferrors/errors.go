// Package ferrors defines the error taxonomy shared by every store and
// handler in the daemon. Handlers never return a bare error to the HTTP
// layer; they return (or wrap) a *ferrors.Error so the router can pick a
// stable status code and a caller-safe message without leaking internals.
package ferrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind names a class of failure, not a concrete type. The same Kind can
// wrap many different underlying causes.
type Kind string

const (
	NotFound       Kind = "not_found"
	InvalidArgument Kind = "invalid_argument"
	Conflict       Kind = "conflict"
	Unauthorized   Kind = "unauthorized"
	TransportError Kind = "transport_error"
	CorruptStore   Kind = "corrupt_store"
	Internal       Kind = "internal"
)

// Status returns the HTTP status code bound to a Kind.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case InvalidArgument:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case TransportError:
		return http.StatusBadGateway
	case CorruptStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete error type carrying a Kind, a user-safe message,
// and an optional wrapped cause retained only for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status for this error's Kind.
func (e *Error) Status() int { return e.Kind.Status() }

// New builds a *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error around an existing cause, keeping the cause for logs
// via Unwrap/errors.Is while presenting only Message to callers.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// As extracts a *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else Internal.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return Internal
}

func IsNotFound(err error) bool       { return KindOf(err) == NotFound }
func IsConflict(err error) bool       { return KindOf(err) == Conflict }
func IsInvalidArgument(err error) bool { return KindOf(err) == InvalidArgument }
