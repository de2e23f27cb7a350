// Package retry runs an operation with exponential backoff while its
// errors are transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	ErrContextCancelled    = errors.New("context cancelled during retry")
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 200 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultMultiplier   = 2.0
)

// Config tunes the backoff schedule. Zero fields fall back to the defaults.
type Config struct {
	// MaxAttempts includes the first call.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	IsRetryable  func(error) bool
	// OnRetry, when set, observes each failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		IsRetryable:  DefaultIsRetryable,
	}
}

// Retryable marks an error as transient regardless of its message.
type Retryable interface {
	Retryable() bool
}

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"unexpected eof",
}

// DefaultIsRetryable treats network failures and errors implementing
// Retryable as transient. Context cancellation is never retried.
func DefaultIsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = DefaultMultiplier
	}
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	return c
}

// Backoff returns the delay before attempt+1.
func (c Config) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	d := time.Duration(float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if d > c.MaxDelay || d <= 0 {
		return c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !cfg.IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}
