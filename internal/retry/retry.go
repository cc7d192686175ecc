// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy describes how many times an operation runs and how long to wait
// between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	// Jitter is the fraction (0..1) by which each delay is spread around its
	// nominal value.
	Jitter float64
}

// DefaultPolicy is 3 attempts, 1s base delay doubling up to 5s, ±20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Backoff returns the delay to wait after the given failed attempt (1-based),
// before jitter is applied. The result never exceeds MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// jittered spreads d by ±Jitter and clamps the result to [0, MaxDelay].
func (p Policy) jittered(d time.Duration, rnd func() float64) time.Duration {
	if d <= 0 || p.Jitter == 0 {
		return d
	}
	delta := float64(d) * p.Jitter
	v := float64(d) - delta + rnd()*2*delta
	if v < 0 {
		v = 0
	}
	if v > float64(p.MaxDelay) {
		v = float64(p.MaxDelay)
	}
	return time.Duration(v)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int
	Err    error
	Delay  time.Duration
}

type options struct {
	retryable func(error) bool
	onRetry   func(Attempt)
	sleep     func(context.Context, time.Duration) error
	rand      func() float64
}

// Option customizes Do.
type Option func(*options)

// WithRetryable sets the classifier deciding whether an error is worth
// another attempt. By default every error is.
func WithRetryable(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// OnRetry registers a hook called before each backoff sleep.
func OnRetry(fn func(Attempt)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithSleep replaces the context-aware sleep, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(o *options) { o.rand = fn }
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy's
// attempt budget is spent. Non-retryable errors are returned unchanged after
// the attempt that produced them; an exhausted budget yields *ExhaustedError.
// Cancellation of ctx stops the loop with ctx.Err() wrapped.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	p = p.normalized()
	o := options{
		retryable: func(error) bool { return true },
		sleep:     sleepContext,
		rand:      rand.Float64,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, abandoned(err, last)
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		last = err

		if ctx.Err() != nil {
			return zero, abandoned(ctx.Err(), last)
		}
		if !o.retryable(err) {
			return zero, err
		}
		// No wait after the final attempt: the budget is spent.
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.jittered(p.Backoff(attempt), o.rand)
		if o.onRetry != nil {
			o.onRetry(Attempt{Number: attempt, Err: err, Delay: delay})
		}
		if err := o.sleep(ctx, delay); err != nil {
			return zero, abandoned(err, last)
		}
	}

	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Last: last}
}

func abandoned(ctxErr, last error) error {
	if last == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, last)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
