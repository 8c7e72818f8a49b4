package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports code equality so cloned errors still match their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound               = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden              = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized           = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict               = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed     = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation             = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal               = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrConcurrentModification = New("CONCURRENT_MODIFICATION", http.StatusConflict, "week is being modified concurrently, retry")
	ErrGenerationInfeasible   = New("GENERATION_INFEASIBLE", http.StatusUnprocessableEntity, "unit could not be placed under hard constraints")
	ErrCancelled              = New("CANCELLED", 499, "operation cancelled")
	ErrCacheMiss              = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrTooManyRequests        = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// HasCode reports whether err normalises to the given code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return FromError(err).Code == code
}
