// File: internal/poll/poll.go

// Package poll provides the bounded poll-until primitive the harness uses in
// place of fixed-duration sleeps: check a condition at a fixed interval,
// return as soon as it holds, fail only once the timeout elapses.
package poll

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned when the condition did not hold within the budget.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Condition reports whether the awaited state has been reached. A non-nil
// error aborts the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond every interval until it returns true, the timeout
// elapses (ErrTimeout), or ctx is canceled. The first evaluation happens
// immediately, so a condition that already holds never waits.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A rate limiter paces the checks; the initial token makes the first
	// check immediate.
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrTimeout
		}

		ok, err := cond(pollCtx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// Settle blocks for a fixed duration, honoring cancellation. It exists for
// the few wait points with no observable completion condition (in-page layout
// changes); everything observable goes through Until.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
