package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable error identifier sent to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "PERMISSION_DENIED"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// NonFieldKey holds whole-form validation messages inside a FieldErrors map.
const NonFieldKey = "non_field_errors"

// Metadata describes how a Code surfaces to API clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public}
}

func (m Metadata) retryable() Metadata   { m.Retryable = true; return m }
func (m Metadata) withDetails() Metadata { m.DetailsAllowed = true; return m }

var codeTable = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed").withDetails(),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     meta(http.StatusForbidden, "access denied"),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found"),
	CodeConflict:      meta(http.StatusConflict, "conflict detected"),
	CodeStateConflict: meta(http.StatusConflict, "state transition disallowed").withDetails(),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused").withDetails(),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error").retryable(),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable").retryable(),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := codeTable[code]; ok {
		return m
	}
	return codeTable[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// FieldErrors maps a form field (or NonFieldKey) to its message.
type FieldErrors map[string]string

// Validation builds a CodeValidation error carrying per-field messages.
func Validation(message string, fields FieldErrors) *Error {
	return New(CodeValidation, message).WithDetails(fields)
}

// NonField builds a validation error that is not tied to any single field.
func NonField(message string) *Error {
	return Validation(message, FieldErrors{NonFieldKey: message})
}

// PermissionDenied carries a fixed human-readable denial message.
func PermissionDenied(message string) *Error {
	return New(CodeForbidden, message)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
