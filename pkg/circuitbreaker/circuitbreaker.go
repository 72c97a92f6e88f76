// Package circuitbreaker implements the Circuit Breaker pattern.
// It keeps an unhealthy optional dependency (the Redis leaderboard cache)
// from adding latency to every request.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned while the half-open trial call is still running.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than the
// protected call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the circuit. Default: 5
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it. Default: 2
	SuccessThreshold int

	// Timeout is how long the circuit stays open. Default: 30s
	Timeout time.Duration

	OnStateChange func(name string, from, to State)

	// IsFailure filters which errors count. Nil counts every non-nil error.
	IsFailure func(error) bool

	now func() time.Time
}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		now:              time.Now,
	}
}

// Option configures a CircuitBreaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the success threshold.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithTimeout sets the open-state duration.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// WithIsFailure limits which errors count toward opening the circuit.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.now = now
		}
	}
}

// CircuitBreaker guards calls to one dependency. Half-open admits a single
// trial call at a time.
type CircuitBreaker struct {
	config Config

	mu        sync.Mutex
	state     State
	failures  int // consecutive, closed state
	successes int // consecutive, half-open state
	openedAt  time.Time
	probing   bool
}

// New creates a new CircuitBreaker with the given name and options.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.config.now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}

	if cb.probing {
		return ErrTooManyRequests
	}
	cb.probing = true
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.probing = false
		if failed {
			cb.transition(StateOpen)
			return
		}
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) transition(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.failures, cb.successes, cb.probing = 0, 0, false
	if next == StateOpen {
		cb.openedAt = cb.config.now()
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, prev, next)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CacheBreaker returns a breaker for the optional leaderboard cache. It
// trips fast, retries the cache after a short pause and ignores errors for
// which countsAsOutage returns false.
func CacheBreaker(countsAsOutage func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"leaderboard-cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(15*time.Second),
		WithIsFailure(countsAsOutage),
		WithOnStateChange(onStateChange),
	)
}
