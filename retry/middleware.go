// Package retry provides exponential backoff retry strategies for push delivery.
// A strategy bounds how many times a single device delivery is attempted
// before it is counted as failed.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Strategy defines the retry behavior for a failed device delivery.
// It implements exponential backoff with configurable parameters.
//
// The wait before retry n (1-based) follows:
// delay = min(BaseDelay * ExponentialBase^(n-1), MaxDelay)
//
// Example with defaults (250ms base, 2.0 exponential, 2s max, 3 attempts):
//
//	Attempt 1: immediate
//	Attempt 2: after 250ms
//	Attempt 3: after 500ms
type Strategy struct {
	MaxAttempts     int           // Total attempts including the first one
	BaseDelay       time.Duration // Wait before the first retry
	MaxDelay        time.Duration // Maximum wait cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// DefaultStrategy returns the default push delivery retry strategy.
// Configuration: 3 attempts, 250ms→2s exponential backoff.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     3,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		ExponentialBase: 2.0,
	}
}

// NoRetry returns a strategy that attempts delivery exactly once.
func NoRetry() Strategy {
	return Strategy{MaxAttempts: 1, ExponentialBase: 1.0}
}

// CalculateRetryDelay calculates the delay for a given retry using exponential backoff.
// Formula: delay = min(BaseDelay * ExponentialBase^attemptNumber, MaxDelay)
//
// attemptNumber is 0 for the first retry.
func (s Strategy) CalculateRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber <= 0 {
		return s.capped(float64(s.BaseDelay))
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attemptNumber))
	return s.capped(delay)
}

func (s Strategy) capped(delay float64) time.Duration {
	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// IsRetryable checks if another attempt is allowed after attemptCount attempts.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return attemptCount < s.MaxAttempts
}

// Do calls fn until it succeeds, the attempts are exhausted, shouldRetry
// rejects the error, or ctx is done. It returns the number of attempts made
// and the last error.
//
// A nil shouldRetry retries every error.
func (s Strategy) Do(ctx context.Context, shouldRetry func(error) bool, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if !s.IsRetryable(attempts) || (shouldRetry != nil && !shouldRetry(err)) {
			return attempts, err
		}

		timer := time.NewTimer(s.CalculateRetryDelay(attempts - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("retry aborted after %d attempts: %w", attempts, err)
		case <-timer.C:
		}
	}
}

// GetRetrySchedule returns a human-readable description of the retry schedule.
//
// Example output:
//
//	Retry Schedule:
//	  Attempt 1: immediate
//	  Attempt 2: after 250ms
//	  Attempt 3: after 500ms
func (s Strategy) GetRetrySchedule() string {
	schedule := "Retry Schedule:\n"
	for i := 1; i <= s.MaxAttempts; i++ {
		if i == 1 {
			schedule += "  Attempt 1: immediate\n"
			continue
		}
		schedule += fmt.Sprintf("  Attempt %d: after %v\n", i, s.CalculateRetryDelay(i-2))
	}
	return schedule
}
