// Package retry implements bounded retries with exponential backoff and
// jitter for calls to external delivery channels. Callers classify their
// failures with Retryable and Permanent; unclassified errors are not retried.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

type classifiedError struct {
	err       error
	retryable bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Retryable marks an error as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, retryable: true}
}

// Permanent marks an error as final: retrying will not help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.retryable
}

// Config controls the backoff curve.
type Config struct {
	// MaxAttempts counts the first call too, so 3 means at most 2 retries.
	MaxAttempts int

	// InitialDelay is the pause before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	// Multiplier scales the delay after every failed attempt.
	Multiplier float64

	// Jitter randomizes each delay by up to this fraction in either
	// direction, desynchronizing competing workers.
	Jitter float64
}

// Retrier executes operations under a fixed backoff policy.
type Retrier struct {
	cfg Config
}

// New creates a Retrier, filling zero fields with defaults.
func New(cfg Config) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Retrier{cfg: cfg}
}

// NotificationRetrier is tuned for webhook delivery: patient enough to ride
// out a brief channel hiccup, conservative enough not to trip rate limits.
func NotificationRetrier() *Retrier {
	return New(Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
	})
}

// Do runs op, retrying errors marked Retryable until the attempt budget or
// the context runs out. Errors marked Permanent and unclassified errors are
// returned immediately, unwrapped from their classification.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = unwrapClassified(err)

		if !IsRetryable(err) || attempt == r.cfg.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(r.delay(attempt)):
		}
	}
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.cfg.MaxDelay))
	if r.cfg.Jitter > 0 {
		d += d * r.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

func unwrapClassified(err error) error {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.err
	}
	return err
}
