package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategy(t *testing.T) {
	strategy := DefaultStrategy()

	assert.Equal(t, 3, strategy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, strategy.BaseDelay)
	assert.Equal(t, 2*time.Second, strategy.MaxDelay)
	assert.Equal(t, 2.0, strategy.ExponentialBase)
}

func TestStrategy_CalculateRetryDelay(t *testing.T) {
	strategy := DefaultStrategy()

	tests := []struct {
		name          string
		attemptNumber int
		expected      time.Duration
	}{
		{name: "Negative attempt", attemptNumber: -1, expected: 250 * time.Millisecond},
		{name: "First retry", attemptNumber: 0, expected: 250 * time.Millisecond},
		{name: "Second retry", attemptNumber: 1, expected: 500 * time.Millisecond},
		{name: "Third retry", attemptNumber: 2, expected: time.Second},
		{name: "Capped at max", attemptNumber: 3, expected: 2 * time.Second},
		{name: "Far beyond cap", attemptNumber: 20, expected: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, strategy.CalculateRetryDelay(tt.attemptNumber))
		})
	}
}

func TestStrategy_IsRetryable(t *testing.T) {
	strategy := DefaultStrategy()

	tests := []struct {
		name         string
		attemptCount int
		expected     bool
	}{
		{name: "No attempts", attemptCount: 0, expected: true},
		{name: "One attempt", attemptCount: 1, expected: true},
		{name: "At max attempts", attemptCount: 3, expected: false},
		{name: "Beyond max attempts", attemptCount: 5, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, strategy.IsRetryable(tt.attemptCount))
		})
	}
}

func fastStrategy(attempts int) Strategy {
	return Strategy{
		MaxAttempts:     attempts,
		BaseDelay:       time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestStrategy_Do(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("Succeeds first time", func(t *testing.T) {
		calls := 0
		attempts, err := fastStrategy(3).Do(context.Background(), nil, func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("Succeeds after retries", func(t *testing.T) {
		calls := 0
		attempts, err := fastStrategy(3).Do(context.Background(), nil, func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Exhausts attempts", func(t *testing.T) {
		calls := 0
		attempts, err := fastStrategy(3).Do(context.Background(), nil, func(context.Context) error {
			calls++
			return errBoom
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("Stops on non-retryable error", func(t *testing.T) {
		calls := 0
		attempts, err := fastStrategy(3).Do(context.Background(), func(error) bool { return false }, func(context.Context) error {
			calls++
			return errBoom
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("No retry strategy", func(t *testing.T) {
		attempts, err := NoRetry().Do(context.Background(), nil, func(context.Context) error {
			return errBoom
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("Context cancelled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		strategy := Strategy{MaxAttempts: 5, BaseDelay: time.Hour, ExponentialBase: 2.0}

		attempts, err := strategy.Do(ctx, nil, func(context.Context) error {
			cancel()
			return errBoom
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, attempts)
		assert.Contains(t, err.Error(), "retry aborted")
	})
}

func TestStrategy_GetRetrySchedule(t *testing.T) {
	schedule := DefaultStrategy().GetRetrySchedule()

	assert.Contains(t, schedule, "Retry Schedule:")
	assert.Contains(t, schedule, "Attempt 1: immediate")
	assert.Contains(t, schedule, "Attempt 2: after 250ms")
	assert.Contains(t, schedule, "Attempt 3: after 500ms")
	assert.NotContains(t, schedule, "Attempt 4")

	lines := strings.Split(strings.TrimSpace(schedule), "\n")
	assert.Len(t, lines, 4)
}

// Boundary value tests.
func TestStrategy_BoundaryValues(t *testing.T) {
	t.Run("Zero base delay", func(t *testing.T) {
		strategy := Strategy{BaseDelay: 0, ExponentialBase: 2.0, MaxDelay: time.Minute}
		assert.Equal(t, time.Duration(0), strategy.CalculateRetryDelay(5))
	})

	t.Run("Exponential base of 1", func(t *testing.T) {
		strategy := Strategy{BaseDelay: 30 * time.Millisecond, ExponentialBase: 1.0, MaxDelay: time.Minute}
		assert.Equal(t, strategy.CalculateRetryDelay(1), strategy.CalculateRetryDelay(5))
	})

	t.Run("Max delay below base delay", func(t *testing.T) {
		strategy := Strategy{BaseDelay: time.Second, ExponentialBase: 2.0, MaxDelay: 100 * time.Millisecond}
		assert.Equal(t, 100*time.Millisecond, strategy.CalculateRetryDelay(0))
	})
}

func BenchmarkCalculateRetryDelay(b *testing.B) {
	strategy := DefaultStrategy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = strategy.CalculateRetryDelay(i % 10)
	}
}
