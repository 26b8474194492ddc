package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes failures for response mapping and metrics.
type ErrorKind string

const (
	// KindValidation indicates a missing or malformed payload field.
	// Rejected synchronously; never mutates state.
	KindValidation ErrorKind = "validation"
	// KindNotFound indicates an operation on an entity that does not
	// exist. Idempotent mutations treat this as a silent no-op.
	KindNotFound ErrorKind = "not_found"
	// KindStoreUnavailable indicates the backing document store could not
	// be reached; the triggering mutation is considered not applied.
	KindStoreUnavailable ErrorKind = "store_unavailable"
	// KindInternal indicates an unexpected server-side failure.
	KindInternal ErrorKind = "internal"
)

// Error is a structured error carrying its kind for boundary handling.
// No kind is fatal: the event loop and the simulator survive all of them.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to the equivalent HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError builds a validation error.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// MissingFieldError builds a validation error for an absent required
// field. Presence is checked explicitly: a present-but-zero vitals value
// is valid input.
func MissingFieldError(field string) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf("missing required field %q", field)}
}

// NotFoundError builds a not-found error for an entity.
func NotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// StoreUnavailableError wraps a failed store call.
func StoreUnavailableError(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "document store unavailable", Cause: cause}
}

// ErrInvalidChannel rejects channel names outside general/emergencies.
var ErrInvalidChannel = &Error{Kind: KindValidation, Message: "invalid channel"}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == KindNotFound
}

// IsStoreUnavailable reports whether err is a store availability failure.
func IsStoreUnavailable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == KindStoreUnavailable
}

// AsError converts any error into a structured *Error, wrapping unknown
// errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Kind: KindInternal, Message: "internal error", Cause: err}
}
