// Package retry provides predicate-driven retry with exponential backoff.
// The storage layer wraps every client call in a Retryer so no call site
// carries its own retry logic.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Defaults tuned for long service-side throttling windows: with a 20s
// initial backoff, 1.5 multiplier and 20 tries, a permanently throttled
// call gives up after roughly a day rather than failing fast.
const (
	DefaultBackoff    = 20 * time.Second
	DefaultMultiplier = 1.5
	DefaultMaxTries   = 20
)

// Config defines retry behavior. It is immutable once handed to New.
type Config struct {
	// Backoff is the delay before the first retry.
	Backoff time.Duration `yaml:"backoff" json:"backoff"`

	// Multiplier is the factor the delay grows by after each retry.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// MaxTries is the total number of attempts, the first one included.
	MaxTries int `yaml:"max_tries" json:"max_tries"`

	// RetryIf classifies an error as retryable. A nil predicate retries
	// nothing.
	RetryIf func(error) bool `yaml:"-" json:"-"`

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultConfig returns the keyfs retry tuning with the given classifier.
func DefaultConfig(retryIf func(error) bool) Config {
	return Config{
		Backoff:    DefaultBackoff,
		Multiplier: DefaultMultiplier,
		MaxTries:   DefaultMaxTries,
		RetryIf:    retryIf,
	}
}

// Retryer executes operations under a retry policy.
type Retryer struct {
	config Config
	sleep  func(context.Context, time.Duration) error
}

// New creates a Retryer, filling zero config values with the defaults.
func New(config Config) *Retryer {
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	if config.Multiplier <= 0 {
		config.Multiplier = DefaultMultiplier
	}
	if config.MaxTries <= 0 {
		config.MaxTries = DefaultMaxTries
	}
	return &Retryer{config: config, sleep: sleepCtx}
}

// Do invokes fn until it succeeds, fails with a non-retryable error, or
// MaxTries attempts are exhausted. The delay before retry i (zero-based) is
// Backoff * Multiplier^i. Sleeps are cut short by context cancellation.
// Non-retryable errors and the final exhausted error propagate unmodified.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	delay := r.config.Backoff

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxTries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry canceled: %w", err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if r.config.RetryIf == nil || !r.config.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == r.config.MaxTries {
			break
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry canceled after %d attempts: %w", attempt, err)
		}
		delay = time.Duration(float64(delay) * r.config.Multiplier)
	}

	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
