package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("throttled")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

// newFake returns a Retryer whose sleeps are recorded instead of slept.
func newFake(config Config) (*Retryer, *[]time.Duration) {
	r := New(config)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestDoSucceedsFirstTry(t *testing.T) {
	r, slept := newFake(DefaultConfig(isTransient))

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no sleeps", *slept)
	}
}

func TestDoRetriesWithExponentialBackoff(t *testing.T) {
	r, slept := newFake(Config{
		Backoff:    20 * time.Second,
		Multiplier: 1.5,
		MaxTries:   20,
		RetryIf:    isTransient,
	})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 4 {
			return errTransient
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}

	want := []time.Duration{20 * time.Second, 30 * time.Second, 45 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestDoNonRetryablePropagatesImmediately(t *testing.T) {
	r, slept := newFake(DefaultConfig(isTransient))

	fatal := errors.New("no such key")
	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("Do() = %v, want %v unmodified", err, fatal)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no sleeps", *slept)
	}
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	r, _ := newFake(Config{
		Backoff:    time.Second,
		Multiplier: 2,
		MaxTries:   3,
		RetryIf:    isTransient,
	})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Fatalf("Do() = %v, want last transient error", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	r := New(Config{
		Backoff:    time.Hour,
		Multiplier: 2,
		MaxTries:   5,
		RetryIf:    isTransient,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := r.Do(ctx, func(context.Context) error { return errTransient })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	r := New(Config{RetryIf: isTransient})

	if r.config.Backoff != DefaultBackoff {
		t.Errorf("Backoff = %v, want %v", r.config.Backoff, DefaultBackoff)
	}
	if r.config.Multiplier != DefaultMultiplier {
		t.Errorf("Multiplier = %v, want %v", r.config.Multiplier, DefaultMultiplier)
	}
	if r.config.MaxTries != DefaultMaxTries {
		t.Errorf("MaxTries = %v, want %v", r.config.MaxTries, DefaultMaxTries)
	}
}
