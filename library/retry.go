package library

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc is an operation that may fail with ErrContention.
type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	logger       Logger
}

// RetryOption configures RetryOnContention.
type RetryOption func(*retryConfig) error

// RetryOnContention runs fn until it succeeds, fails with anything other
// than ErrContention, or runs out of attempts. Delays double from the base
// delay with random jitter on top: 0, 10ms, 20ms, 40ms, 80ms by default.
func RetryOnContention(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		logger:       discardLogger(),
	}
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // jitter only
			backoff := delay + time.Duration(jitter)

			config.logger.Debug(logMsgRetrying, logAttrAttempt, attempt+1, logAttrError, lastErr)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		config.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		config.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the random extra delay as a fraction of the backoff, 0.0 to 1.0.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		config.jitterFactor = factor
		return nil
	}
}

// WithRetryLogger logs each retry at debug level.
func WithRetryLogger(logger Logger) RetryOption {
	return func(config *retryConfig) error {
		if logger != nil {
			config.logger = logger
		}
		return nil
	}
}
