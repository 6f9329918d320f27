// Package apierror provides the error taxonomy used across all financial
// workflows plus the standardized response envelopes for the API. Services
// return *apierror.Error values; handlers translate the Kind to an HTTP
// status without inspecting messages. Internal details (stack traces, DB
// errors) never reach clients.
package apierror

import (
	"fmt"
	"net/http"
)

// Kind classifies every error a workflow can surface to its caller.
type Kind string

const (
	// KindValidation: malformed or out-of-range input (negative amount,
	// over-returned quantity, unknown enum value).
	KindValidation Kind = "validation_error"
	// KindInvalidState: the operation is not legal from the entity's
	// current estado.
	KindInvalidState Kind = "invalid_state"
	// KindForbidden: the actor's role is not in the allowed/approver list.
	KindForbidden Kind = "forbidden"
	// KindAuthorization: a segregation-of-duties violation or a missing
	// required authorization (e.g. closing a caja with an unjustified
	// desvío above the threshold).
	KindAuthorization Kind = "authorization_error"
	// KindConflict: uniqueness violation, e.g. a second open caja for the
	// same cashier.
	KindConflict Kind = "conflict"
	// KindPrecondition: required external state is missing, e.g. no open
	// caja when processing a devolución.
	KindPrecondition Kind = "precondition_failed"
	// KindNotFound: the referenced entity does not exist.
	KindNotFound Kind = "not_found"
	// KindRetryable: transient storage conflict (lock wait timeout,
	// serialization failure). The core never retries; callers may.
	KindRetryable Kind = "retryable"
	// KindInternal: anything else. Mapped to 500 with a generic message.
	KindInternal Kind = "internal"
)

// Error is the canonical domain error. Detail is safe to show to clients.
type Error struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (e *Error) Error() string { return e.Detail }

// HTTPStatus maps the taxonomy to response codes.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindForbidden, KindAuthorization:
		return http.StatusForbidden
	case KindPrecondition:
		return http.StatusPreconditionFailed
	case KindNotFound:
		return http.StatusNotFound
	case KindRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newKind(k Kind, format string, args ...interface{}) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: k, Detail: detail}
}

func Validation(format string, args ...interface{}) *Error {
	return newKind(KindValidation, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newKind(KindInvalidState, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newKind(KindForbidden, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return newKind(KindAuthorization, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newKind(KindConflict, format, args...)
}

func Precondition(format string, args ...interface{}) *Error {
	return newKind(KindPrecondition, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newKind(KindNotFound, format, args...)
}

func Retryable(format string, args ...interface{}) *Error {
	return newKind(KindRetryable, format, args...)
}

func Internal(format string, args ...interface{}) *Error {
	return newKind(KindInternal, format, args...)
}

// ── Wire envelopes ───────────────────────────────────────────────────────────

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Kind   Kind   `json:"kind,omitempty"`
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// FromError builds the wire envelope from a domain error.
func FromError(e *Error) *APIError {
	return &APIError{Kind: e.Kind, Detail: e.Detail}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
