package service

import (
	"errors"
	"fmt"
	"net/http"

	"thinkfirst/internal/validation"
)

// Kind classifies a service error
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindConflict      Kind = "conflict"
	KindInternal      Kind = "internal"
)

// Error is a classified service failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Fields  validation.Errors
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode maps the kind to an HTTP status
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error. Field errors from validation.Struct are kept.
func NewValidationError(message string, cause error) *Error {
	e := &Error{Kind: KindValidation, Message: message, Cause: cause}
	var fields validation.Errors
	if errors.As(cause, &fields) {
		e.Fields = fields
	}
	return e
}

// NewNotFoundError creates a not found error
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewConfigurationError creates an error for a missing deployment setting
func NewConfigurationError(message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Cause: cause}
}

// NewConflictError creates a conflict error
func NewConflictError(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Cause: cause}
}

// NewInternalError wraps an unexpected failure; the cause is never shown to callers
func NewInternalError(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
