package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	MaxAttempts     int              `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay    time.Duration    `json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay        time.Duration    `json:"max_delay" mapstructure:"max_delay"`
	BackoffFactor   float64          `json:"backoff_factor" mapstructure:"backoff_factor"`
	JitterEnabled   bool             `json:"jitter_enabled" mapstructure:"jitter_enabled"`
	RetryableErrors func(error) bool `json:"-" mapstructure:"-"`
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration) `json:"-" mapstructure:"-"`
}

// DefaultRetryConfig bounds storage retries at three attempts with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffFactor:   2.0,
		JitterEnabled:   true,
		RetryableErrors: errors.IsRetryableError,
	}
}

// RetryableFunc represents a function that can be retried
type RetryableFunc func() error

// RetryWithConfig executes fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. The last error is returned unchanged.
func RetryWithConfig(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = errors.IsRetryableError
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !retryable(err) {
			break
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateDelay(config, attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateDelay computes the delay for the next retry attempt
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	factor := config.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(factor, float64(attempt)))

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	// up to 10% jitter
	if config.JitterEnabled && delay >= 10 {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}

	return delay
}
