package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundParameter,
		Message: "unknown parameter \"humidity\"",
	}

	expected := "not_found_parameter: unknown parameter \"humidity\""
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	underlying := errors.New("busy")
	appErr := NewAppError(ErrCodeConflictSimulationRunning, "simulation already running", underlying)
	wrapped := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find *AppError in chain")
	}
	if target.Code != ErrCodeConflictSimulationRunning {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeConflictSimulationRunning)
	}
	if !errors.Is(wrapped, underlying) {
		t.Error("errors.Is should reach the underlying cause")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMalformedBody, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeNotFoundParameter, http.StatusNotFound},
		{ErrCodeConflictSimulationRunning, http.StatusConflict},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAttemptErrorMessages(t *testing.T) {
	status := &AttemptError{Kind: FailureStatus, StatusCode: 503}
	if !strings.Contains(status.Error(), "503") {
		t.Errorf("status error should carry the code, got %q", status.Error())
	}

	app := &AttemptError{Kind: FailureApplication, Message: "model unavailable"}
	if app.Error() != "model unavailable" {
		t.Errorf("application error = %q, want the service message verbatim", app.Error())
	}

	cause := errors.New("connection refused")
	transport := &AttemptError{Kind: FailureTransport, Message: "request failed", Err: cause}
	if transport.Error() != "request failed: connection refused" {
		t.Errorf("transport error = %q", transport.Error())
	}
	if !errors.Is(transport, cause) {
		t.Error("transport error should unwrap to its cause")
	}
}

func TestFailureKindOf(t *testing.T) {
	wrapped := fmt.Errorf("attempt 2: %w", &AttemptError{Kind: FailureDecode, Message: "bad json"})
	if got := FailureKindOf(wrapped); got != FailureDecode {
		t.Errorf("FailureKindOf(wrapped) = %q, want %q", got, FailureDecode)
	}
	if got := FailureKindOf(errors.New("plain")); got != FailureTransport {
		t.Errorf("FailureKindOf(plain) = %q, want %q", got, FailureTransport)
	}
}
