package simulation

import (
	"context"
	"math"
	"time"

	"goldenbatch/internal/types"
)

// RetryPolicy bounds a simulation run. Backoff is fixed and non-jittered so
// the schedule is reproducible: the delay before attempt k (k >= 1) is
// 2^k * BaseDelay, and attempt 0 fires immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether a failed attempt may be retried. Nil retries
	// every failure kind.
	Retryable func(*types.AttemptError) bool
}

// DefaultRetryPolicy returns five attempts with 2s, 4s, 8s and 16s delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	}
}

// Delay returns the wait before the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
}

// Schedule lists the delay before every attempt of a full run.
func (p RetryPolicy) Schedule() []time.Duration {
	out := make([]time.Duration, p.MaxAttempts)
	for i := range out {
		out[i] = p.Delay(i)
	}
	return out
}

func (p RetryPolicy) shouldRetry(err *types.AttemptError) bool {
	if p.Retryable == nil || err == nil {
		return true
	}
	return p.Retryable(err)
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// contextSleep is the production SleepFunc.
func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
