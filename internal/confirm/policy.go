// Package confirm waits for submitted transactions to reach finality.
package confirm

import (
	"context"
	"errors"
	"time"
)

// Default retry policy values.
const (
	DefaultMaxAttempts = 10
	DefaultInterval    = 2 * time.Second
	DefaultBackoff     = 1.5
	DefaultMaxInterval = 5 * time.Second
)

// ErrExhausted is returned when a policy runs out of attempts.
var ErrExhausted = errors.New("retry attempts exhausted")

// RetryPolicy bounds a polling loop.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration // delay after the first attempt
	Backoff     float64       // delay multiplier per attempt
	MaxInterval time.Duration // delay cap
}

// DefaultRetryPolicy returns the confirmation policy: 10 attempts starting
// 2s apart, growing by 1.5x up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultInterval,
		Backoff:     DefaultBackoff,
		MaxInterval: DefaultMaxInterval,
	}
}

// normalized fills zero fields with defaults.
func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Backoff < 1 {
		p.Backoff = 1
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	return p
}

// Delay returns the wait after the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	d := float64(p.Interval)
	for i := 0; i < attempt; i++ {
		d *= p.Backoff
		if d >= float64(p.MaxInterval) {
			return p.MaxInterval
		}
	}
	return time.Duration(d)
}

// Budget returns the total wait across all attempts.
func (p RetryPolicy) Budget() time.Duration {
	p = p.normalized()
	var total time.Duration
	for i := 0; i < p.MaxAttempts-1; i++ {
		total += p.Delay(i)
	}
	return total
}

// Do calls fn until it reports done, returns an error, or the attempts run
// out. It returns ErrExhausted in the last case and ctx.Err() on cancellation.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) (done bool, err error)) error {
	p = p.normalized()
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		done, err := fn(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrExhausted
}
