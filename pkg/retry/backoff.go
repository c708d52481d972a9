package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExponentialBackoff grows the interval by multiplier up to maxInterval and
// never gives up. Intervals are exact so callers can log the real wait.
func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// ConstantBackoff waits the same interval between every attempt, without jitter.
func ConstantBackoff(interval time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(interval)
}

func CalculateBackoffDuration(attempt int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	if multiplier <= 1 {
		return initialInterval
	}
	duration := float64(initialInterval) * math.Pow(multiplier, float64(attempt))
	if maxInterval > 0 && duration > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(duration)
}

// NewBackOff returns a fresh schedule for the policy. It ignores MaxAttempts.
func (p Policy) NewBackOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return ConstantBackoff(p.InitialInterval)
	}
	return ExponentialBackoff(p.InitialInterval, p.MaxInterval, p.Multiplier)
}
