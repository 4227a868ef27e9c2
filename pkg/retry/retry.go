package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"instalytics/pkg/errors"
	"instalytics/pkg/logger"
)

// Operation is a request that may be attempted more than once
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts counts the first try; values below 1 mean a single attempt
	MaxAttempts int
	// Backoff applies to network and server errors
	Backoff BackoffStrategy
	// RateLimitBackoff applies to upstream rate limiting; nil falls back to Backoff
	RateLimitBackoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts, may be nil
	Logger logger.Logger
}

// DefaultConfig retries up to maxAttempts times with the default backoffs
func DefaultConfig(maxAttempts int, log logger.Logger) *Config {
	return &Config{
		MaxAttempts:      maxAttempts,
		Backoff:          DefaultExponentialBackoff(),
		RateLimitBackoff: RateLimitBackoff(),
		RetryIf:          Retryable,
		Logger:           log,
	}
}

// Retryable reports whether err is transient: a network failure, an upstream
// 5xx or upstream rate limiting. Cancellation and deadlines never are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var e *errors.Error
	if !stderrors.As(err, &e) {
		return false
	}
	switch e.Type {
	case errors.ErrorTypeRateLimit:
		return true
	case errors.ErrorTypeUpstream:
		// Code 0 is a transport failure
		return (e.Code == 0 && e.Err != nil) || e.Code >= 500
	default:
		return false
	}
}

// Do executes op until it succeeds, fails permanently or attempts run out
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig(1, nil)
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = Retryable
	}

	attempt := 0
	for {
		attempt++

		err := op(ctx)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			if cfg.MaxAttempts > 1 && cfg.Logger != nil {
				cfg.Logger.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt,
					"last_error": err.Error(),
				})
			}
			return err
		}

		delay := cfg.backoffFor(err).NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (c *Config) backoffFor(err error) BackoffStrategy {
	if c.RateLimitBackoff != nil && errors.Is(err, errors.ErrorTypeRateLimit) {
		return c.RateLimitBackoff
	}
	if c.Backoff == nil {
		return DefaultExponentialBackoff()
	}
	return c.Backoff
}
