// Package external is the boundary between the simulator core and the remote
// prediction service. Outbound HTTP calls go through BaseClient, which applies
// the transport concerns shared by every attempt: circuit breaking, request ID
// propagation and User-Agent injection. Retry scheduling is owned by the
// caller so that every attempt is observable.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"goldenbatch/internal/types"
)

// RequestIDHeader carries the simulation run ID to the prediction service.
const RequestIDHeader = "X-Request-Id"

// ErrCircuitOpen is returned when the breaker rejects an attempt without
// contacting the service.
var ErrCircuitOpen = errors.New("circuit breaker is open; prediction service unavailable")

// BreakerSettings tunes the circuit breaker in front of the service.
type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// DefaultBreakerSettings returns defaults that never trip within a single
// five-attempt simulation run. Consecutive failures are counted across runs
// (the counts reset every 60s while closed), so the third failing run in a row
// can see ErrCircuitOpen in place of the upstream status. Such attempts fail
// as transport errors and are retried like any other.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Threshold: 10,
		Cooldown:  30 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. It performs exactly
// one round trip per call.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with a breaker named breakerName.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	settings BreakerSettings,
	userAgent string,
) *BaseClient {
	if settings.Threshold == 0 {
		settings.Threshold = DefaultBreakerSettings().Threshold
	}
	threshold := settings.Threshold

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return NewBaseClientWithBreaker(httpClient, cb, userAgent)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// errUpstreamStatus marks a 5xx response as a breaker failure while still
// handing the response back to the caller.
type errUpstreamStatus struct {
	code int
}

func (e *errUpstreamStatus) Error() string {
	return fmt.Sprintf("upstream returned %d", e.code)
}

// Do executes the request once:
//  1. Request ID injection (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (5xx and transport errors count as failures)
//
// Any HTTP response, whatever its status, is returned with a nil error; the
// caller classifies it and must close the body. A transport failure or an open
// breaker returns a nil response and an error.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 {
			return r, &errUpstreamStatus{code: r.StatusCode}
		}
		return r, nil
	})

	var statusErr *errUpstreamStatus
	switch {
	case err == nil:
		return resp, nil
	case errors.As(err, &statusErr) && resp != nil:
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	default:
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
}

// BreakerState reports the current breaker state for health output.
func (c *BaseClient) BreakerState() string {
	return c.breaker.State().String()
}
