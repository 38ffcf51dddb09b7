package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay uniformly over [delay*(1-Jitter), delay].
	// Zero disables it.
	Jitter float64
	// Retryable decides whether a non-fatal error is worth another attempt.
	// If nil, every non-fatal error is retried.
	Retryable func(error) bool
	// Notify is called before every wait with the failed attempt number
	// (starting at 1), its error and the delay about to be waited.
	Notify func(attempt int, err error, delay time.Duration)
}

// Option is a functional option for retry configuration.
type Option func(*Config)

func defaults() *Config {
	return &Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// WithExponentialBackoff runs operation until it succeeds, returns a fatal or
// non-retryable error, or MaxRetries retries are used up. Delays grow by
// Multiplier up to MaxDelay. The context is checked while waiting, so an
// attempt already running is never interrupted by the loop itself.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := defaults()
	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		err := operation()
		switch {
		case err == nil:
			return nil
		case IsFatal(err):
			return fmt.Errorf("fatal error (not retrying): %w", err)
		case cfg.Retryable != nil && !cfg.Retryable(err):
			return err
		case attempt > cfg.MaxRetries:
			return fmt.Errorf("operation failed after %d attempts: %w", attempt, err)
		}

		wait := cfg.jittered(delay)
		if cfg.Notify != nil {
			cfg.Notify(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt, err)
		}
		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
}

func (c *Config) jittered(d time.Duration) time.Duration {
	if c.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := time.Duration(float64(d) * min(c.Jitter, 1))
	return d - rand.N(spread+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) { c.InitialDelay = d }
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxDelay = d }
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) { c.Multiplier = m }
}

// WithJitter randomizes delays by up to the given fraction.
func WithJitter(fraction float64) Option {
	return func(c *Config) { c.Jitter = fraction }
}

// WithRetryIf restricts retries to errors accepted by fn.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.Retryable = fn }
}

// WithNotify registers a callback invoked before every wait.
func WithNotify(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.Notify = fn }
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
