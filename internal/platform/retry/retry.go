// Package retry provides the exponential-backoff combinator wrapped around
// network calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config parameterizes Do: total attempt count, the first delay, and the cap
// the doubling stops at.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Clock is swapped for a fake in tests. Nil means the real clock.
	Clock clockwork.Clock
}

// Default mirrors the retry posture of the original automation: five
// attempts starting at one second, capped at thirty.
func Default() Config {
	return Config{Attempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying; Do stops immediately and
// returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to cfg.Attempts times, sleeping BaseDelay, 2×BaseDelay, ...
// between attempts, capped at MaxDelay. It stops early on success, on a
// Permanent error, or when ctx is done mid-wait.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
