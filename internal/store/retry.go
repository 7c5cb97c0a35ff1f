package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryConfig controls how often a network backend is dialled before the
// playground gives up on persistence.
type RetryConfig struct {
	MaxRetries int           // attempts after the first (default: 2)
	BaseDelay  time.Duration // delay before the first retry (default: 200ms)
	MaxDelay   time.Duration // upper bound on any delay (default: 2s)
	Multiplier float64       // growth factor between delays (default: 2)
}

// DefaultRetryConfig returns the retry policy used when Options.Retry is nil.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2,
	}
}

// BackendError is a failure to reach or prepare a backend.
type BackendError struct {
	Backend   string // postgres, redis, ...
	Op        string // connect, migrate, ...
	Err       error
	Retryable bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s store: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// connectWithRetry calls dial until it succeeds, returns a non-retryable
// error, or the attempts run out.
func connectWithRetry(ctx context.Context, backend string, cfg RetryConfig, dial func(context.Context) (Store, error)) (Store, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, err := dial(ctx)
		if err == nil {
			if attempt > 0 {
				log.Printf("[Store] %s connected on attempt %d", backend, attempt+1)
			}
			return s, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}

		if attempt < cfg.MaxRetries {
			delay := backoff(attempt, cfg)
			log.Printf("[Store] %s attempt %d failed (%v), retrying in %v", backend, attempt+1, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	var be *BackendError
	if errors.As(lastErr, &be) {
		be.Retryable = false
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// backoff returns the exponential delay for attempt with up to 10% jitter.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	mult := cfg.Multiplier
	if mult <= 1 {
		mult = 2
	}
	d := float64(cfg.BaseDelay) * math.Pow(mult, float64(attempt))
	if max := float64(cfg.MaxDelay); max > 0 && d > max {
		d = max
	}
	jitter := d * 0.1 * rand.Float64()
	return time.Duration(d + jitter)
}
