// Package retry provides retry with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // 0 means retry forever
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      float64 // 0-1 fraction of the wait
}

// DefaultConfig returns sensible defaults for remote API calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// transientError marks an error as worth retrying.
type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient wraps err so Do will retry it. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var te transientError
	return errors.As(err, &te)
}

// Do runs fn until it succeeds, returns a non-transient error, runs out of
// attempts, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait(cfg, attempt)):
		}
	}

	return zero, lastErr
}

func wait(cfg Config, attempt int) time.Duration {
	w := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if w > float64(cfg.MaxWait) {
		w = float64(cfg.MaxWait)
	}
	if cfg.Jitter > 0 {
		w += w * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(w)
}
