package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP mapping.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeConflict            Code = "CONFLICT"
	CodeInsufficientCredits Code = "INSUFFICIENT_CREDITS"
	CodeTooEarly            Code = "TOO_EARLY"
	CodeTooLate             Code = "TOO_LATE"
	CodeUpstreamFailure     Code = "UPSTREAM_FAILURE"
	CodeInternal            Code = "INTERNAL"
)

// Error is the service-level error type. It carries a taxonomy code, a
// user-facing message and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on the taxonomy code so sentinel-style comparisons work across
// wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// StatusCode maps the taxonomy onto HTTP statuses. The error middleware
// looks for this method.
func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case CodeTooEarly, CodeTooLate:
		return http.StatusUnprocessableEntity
	case CodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func InvalidInput(message string) *Error { return New(CodeInvalidInput, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func TooEarly(message string) *Error     { return New(CodeTooEarly, message) }
func TooLate(message string) *Error      { return New(CodeTooLate, message) }

func InsufficientCredits(message string) *Error {
	return New(CodeInsufficientCredits, message)
}

func Upstream(message string, cause error) *Error {
	return Wrap(CodeUpstreamFailure, message, cause)
}

// CodeOf extracts the taxonomy code from any error in the chain, defaulting
// to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
