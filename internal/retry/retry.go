// Package retry provides the bounded fixed-delay retry policy used for
// secret propagation. The policy is a value that callers inject, so the
// attempt budget and delay live in one place instead of at every call site.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes a bounded retry loop: up to MaxAttempts calls with a fixed
// Delay between them. Retryable decides whether an error consumes another
// attempt; a nil predicate retries every error.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// Default mirrors the bootstrap behavior: three attempts, five seconds apart,
// every error retryable.
func Default() Policy {
	return Policy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. It returns the last error verbatim so callers can
// surface the underlying failure text.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy for %s has no attempts", op)
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt < p.MaxAttempts {
			fmt.Printf("⚠️  %s failed (attempt %d/%d): %v, retrying in %s\n",
				op, attempt, p.MaxAttempts, lastErr, p.Delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}
	return lastErr
}
