package redcap

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds the retry policy for network failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt (default: 3)
	MaxRetries int

	// InitialBackoff is the delay before the first retry (default: 100ms)
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay (default: 2s)
	MaxBackoff time.Duration

	// BackoffMultiplier grows the delay between retries (default: 2)
	BackoffMultiplier float64

	// Jitter randomizes each delay by ±Jitter of its value (default: 0.5)
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        MaxRetries,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.5,
	}
}

// newBackOff returns a backoff that stops after MaxRetries retries or when
// ctx is done.
func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.Multiplier = c.BackoffMultiplier
	b.RandomizationFactor = c.Jitter
	// The retry count is the only bound.
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.MaxRetries)), ctx)
}
