package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a breaker rejects a call because it is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// Settings configures a CircuitBreaker. It mirrors gobreaker.Settings with
// simpler primitive fields so callers don't need to import gobreaker directly.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// CircuitBreaker wraps gobreaker with a fallback invoked whenever the
// underlying breaker rejects a call, and records breaker state to Prometheus.
type CircuitBreaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker builds a breaker around sony/gobreaker with the given
// tuning and fallback. A zero FailureThreshold trips the breaker once at
// least 10 requests have been counted in the current interval and more than
// half of them failed. SuccessThreshold sets how many requests a half-open
// breaker lets through, all of which must succeed before it closes.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	name := nextBreakerName(settings.Name)
	if fallback == nil {
		fallback = NoopFallback
	}

	gbSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if settings.FailureThreshold == 0 {
				return counts.Requests >= 10 && counts.TotalFailures > counts.Requests/2
			}
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
		},
	}

	breaker := &CircuitBreaker{
		name:     name,
		cb:       gobreaker.NewCircuitBreaker(gbSettings),
		fallback: fallback,
	}

	recordBreakerState(name, breaker.cb.State())
	return breaker
}

// Execute runs operation through the breaker. When the breaker rejects the
// call (open, or half-open with its request quota used), the configured
// fallback decides the returned value/error; an error from operation itself
// is returned as is, without the fallback.
func (b *CircuitBreaker) Execute(ctx context.Context, operation Operation) (interface{}, error) {
	recordBreakerRequest(b.name)

	result, err := b.cb.Execute(func() (interface{}, error) {
		return operation(ctx)
	})

	if err != nil {
		recordBreakerFailure(b.name)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			recordBreakerFallback(b.name)
			return b.fallback(ctx, ErrCircuitOpen)
		}
		return nil, err
	}

	return result, nil
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}
