package client

import (
	"context"
	"math"
	"time"
)

// RetryPolicy defines the connection-level backoff behavior: a small
// base delay doubled per attempt, bounded by MaxAttempts total tries.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used for transient failures:
// 3 total attempts with exponential backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// Delay returns the backoff delay preceding the given retry attempt
// (attempt 0 is the first retry).
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}
	return time.Duration(delay)
}

// sleepContext blocks for the given duration or until the context is
// cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
