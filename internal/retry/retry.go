// Package retry holds the fixed-interval polling policy shared by element
// waits, download stabilisation and rename retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned by Until when the condition never held.
	ErrTimeout = errors.New("retry: timed out")
	// ErrUnstable is returned by Stabilize when no run of equal samples was seen.
	ErrUnstable = errors.New("retry: value did not stabilise")
)

// Policy is a fixed-interval retry policy. Zero Timeout means the context is
// the only bound.
type Policy struct {
	Interval  time.Duration
	Timeout   time.Duration
	Stability int
	Attempts  int
}

// Until evaluates cond immediately, then every Interval, until it reports
// true, returns an error, the policy times out or ctx ends.
func (p Policy) Until(ctx context.Context, cond func(context.Context) (bool, error)) error {
	var deadline time.Time
	if p.Timeout > 0 {
		deadline = time.Now().Add(p.Timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if !deadline.IsZero() && !time.Now().Add(p.Interval).Before(deadline) {
			// One last look at the deadline itself.
			if err := sleep(ctx, time.Until(deadline)); err != nil {
				return err
			}
			if ok, err := cond(ctx); err != nil || ok {
				return err
			}
			return fmt.Errorf("%w after %s", ErrTimeout, p.Timeout)
		}

		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}

// Stabilize samples a value every Interval and returns it once Stability
// consecutive equal nonzero samples have been observed. A zero sample resets
// the run.
func (p Policy) Stabilize(ctx context.Context, sample func() (int64, error)) (int64, error) {
	need := p.Stability
	if need < 1 {
		need = 1
	}

	var deadline time.Time
	if p.Timeout > 0 {
		deadline = time.Now().Add(p.Timeout)
	}

	var last int64
	run := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		v, err := sample()
		if err != nil {
			return 0, err
		}

		switch {
		case v == 0:
			run = 0
		case run > 0 && v == last:
			run++
		default:
			run = 1
		}
		last = v

		if run >= need {
			return v, nil
		}

		if !deadline.IsZero() && !time.Now().Add(p.Interval).Before(deadline) {
			return last, fmt.Errorf("%w: last sample %d, run %d/%d", ErrUnstable, last, run, need)
		}

		if err := sleep(ctx, p.Interval); err != nil {
			return 0, err
		}
	}
}

// Do calls fn up to Attempts times, Interval apart, stopping at the first
// success. It returns the last error.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}

		if attempt < attempts {
			if err := sleep(ctx, p.Interval); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
