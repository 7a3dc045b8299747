package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers use these instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMalformedBody ErrorCode = "validation_malformed_body"
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"

	// Not Found (404)
	ErrCodeNotFoundParameter ErrorCode = "not_found_parameter"

	// Conflict (409)
	ErrCodeConflictSimulationRunning ErrorCode = "conflict_simulation_running"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type surfaced by the presentation adapters. It carries
// a stable code for clients and an internal cause that is never exposed.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FailureKind classifies why a single prediction attempt failed.
type FailureKind string

const (
	// FailureTransport covers connection errors, timeouts and an open circuit.
	FailureTransport FailureKind = "transport"
	// FailureStatus is a non-2xx HTTP response.
	FailureStatus FailureKind = "status"
	// FailureDecode is a 2xx response whose body is not a valid result.
	FailureDecode FailureKind = "decode"
	// FailureApplication is a well-formed response carrying an error field.
	FailureApplication FailureKind = "application"
)

// AttemptError describes the failure of one prediction attempt. Every kind is
// currently retried; the kind is kept so diagnostics stay precise.
type AttemptError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AttemptError) Error() string {
	switch e.Kind {
	case FailureStatus:
		return fmt.Sprintf("HTTP error, status: %d", e.StatusCode)
	case FailureApplication:
		return e.Message
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
}

// Unwrap returns the underlying cause.
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// FailureKindOf extracts the failure kind from err, defaulting to transport
// for errors that were not classified.
func FailureKindOf(err error) FailureKind {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return FailureTransport
}
