package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// Operation is a unit of work that Retry and RetryWithBreaker execute.
type Operation func(ctx context.Context) (interface{}, error)

// RetryConfig tunes the backoff schedule and retryability rules of Retry.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	EnableJitter      bool
	// RetryableErrors is an allowlist matched with errors.Is; when non-empty
	// it takes precedence over RetryableChecker.
	RetryableErrors []error
	// RetryableChecker classifies arbitrary errors as retryable when
	// RetryableErrors is empty. Defaults to "retry everything" if both are unset.
	RetryableChecker func(error) bool
}

// DefaultRetryConfig is a balanced policy suitable for most gateway calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// AggressiveRetryConfig retries more often with shorter backoffs, for
// latency-sensitive calls where the upstream is expected to recover fast.
func AggressiveRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        16 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// ConservativeRetryConfig retries sparingly, for calls with side effects
// that are expensive to repeat (e.g. charge attempts without idempotency keys).
func ConservativeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// Retry executes operation, retrying according to config until it succeeds,
// the context is done, or the error is deemed non-retryable.
func Retry(ctx context.Context, config RetryConfig, operation Operation) (interface{}, error) {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry(err, config) {
			return nil, err
		}

		if attempt == maxAttempts {
			break
		}

		backoff := calculateBackoff(attempt, config)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// RetryWithBreaker executes operation through a circuit breaker, retrying
// transient failures per config while letting an open breaker fail fast.
func RetryWithBreaker(ctx context.Context, config RetryConfig, breaker *CircuitBreaker, operation Operation) (interface{}, error) {
	wrapped := func(ctx context.Context) (interface{}, error) {
		return breaker.Execute(ctx, operation)
	}
	return Retry(ctx, config, wrapped)
}

func shouldRetry(err error, config RetryConfig) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	if len(config.RetryableErrors) > 0 {
		for _, candidate := range config.RetryableErrors {
			if errors.Is(err, candidate) {
				return true
			}
		}
		return false
	}

	if config.RetryableChecker != nil {
		return config.RetryableChecker(err)
	}

	return true
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := config.InitialBackoff
	multiplier := config.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * multiplier)
		if backoff >= config.MaxBackoff {
			backoff = config.MaxBackoff
			break
		}
	}

	if backoff > config.MaxBackoff {
		backoff = config.MaxBackoff
	}
	return addJitterIfEnabled(backoff, config)
}

func addJitterIfEnabled(backoff time.Duration, config RetryConfig) time.Duration {
	if !config.EnableJitter {
		return backoff
	}
	return addJitter(backoff)
}

// addJitter returns a random duration in [0, duration] (full jitter).
func addJitter(duration time.Duration) time.Duration {
	if duration <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(duration) + 1))
}

// IsRetryableHTTPStatus reports whether an HTTP status code typically
// indicates a transient failure worth retrying.
func IsRetryableHTTPStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
