// Package backoff provides delay strategies for retry.
package backoff

import (
	"math"
	"time"
)

// Strategy provides the amount of time to wait before the next attempt.
// Note: attempts starts at 1
type Strategy func(attempts uint) time.Duration

// Constant returns a strategy that always returns the provided duration.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// BinaryExponential returns a strategy that doubles the delay on every
// attempt, saturating at the maximum duration.
//
// Ex. BinaryExponential(100*time.Millisecond) = 100ms, 200ms, 400ms, ...
func BinaryExponential(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		delay := baseDelay
		for i := uint(1); i < attempts; i++ {
			if delay > math.MaxInt64/2 {
				return math.MaxInt64
			}
			delay *= 2
		}
		return delay
	}
}
