// Package retry retries store writes with exponential backoff and jitter.
// Bulk rank writes and the legacy importer use it against transient store
// failures; everything else fails fast.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts includes the first attempt. Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Default: 5s
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt. Default: 2.0
	Multiplier float64

	// JitterFactor adds +/- randomness to delays. Default: 0.1
	JitterFactor float64

	// RetryIf decides whether an error is retried. Nil retries every error.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option configures a Retrier.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf limits retries to the errors fn accepts.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry registers a callback run before each retry, typically a log line.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier runs operations with retries.
type Retrier struct {
	config Config
}

// New creates a Retrier from the defaults and opts.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do executes operation until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done. The last error is returned.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if r.config.RetryIf != nil && !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			return err
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

func (r *Retrier) delay(attempt int) time.Duration {
	base := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if base > float64(r.config.MaxDelay) {
		base = float64(r.config.MaxDelay)
	}
	if r.config.JitterFactor > 0 {
		base += base * r.config.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(base, 0))
}

// StoreRetrier returns a Retrier for database writes. Only errors accepted
// by retryIf are retried; opts are applied last.
func StoreRetrier(retryIf func(error) bool, opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(3),
		WithInitialDelay(50 * time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(0.05),
		WithRetryIf(retryIf),
	}, opts...)...)
}

// ImportRetrier returns a Retrier for long-running legacy import batches.
func ImportRetrier(retryIf func(error) bool, opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(5),
		WithInitialDelay(200 * time.Millisecond),
		WithMaxDelay(10 * time.Second),
		WithJitter(0.2),
		WithRetryIf(retryIf),
	}, opts...)...)
}
