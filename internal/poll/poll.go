// Package poll holds the timing primitives shared by the polling loops.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/getpup/dcprobe"
)

// DefaultPollInterval matches the fixed 100ms retry cadence of the probe.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultMaxWait bounds a polling call when no bound is configured.
// Schema agreement on healthy clusters takes seconds; five minutes leaves
// room for slow cross-region links without hanging forever.
const DefaultMaxWait = 5 * time.Minute

// SleepFunc blocks for d unless ctx is done first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep blocks for d or until ctx is done, returning ctx.Err() in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Budget tracks the optional time bound of one polling call.
// A non-positive maxWait means unbounded.
type Budget struct {
	start   time.Time
	maxWait time.Duration
}

// NewBudget starts a budget now.
func NewBudget(maxWait time.Duration) Budget {
	return Budget{start: time.Now(), maxWait: maxWait}
}

// Elapsed returns the time since the budget started.
func (b Budget) Elapsed() time.Duration {
	return time.Since(b.start)
}

// Exceeded reports whether a bounded budget has run out.
func (b Budget) Exceeded() bool {
	return b.maxWait > 0 && b.Elapsed() >= b.maxWait
}

// Next returns how long to sleep before the next attempt: interval, cut
// short so a bounded budget is never overslept.
func (b Budget) Next(interval time.Duration) time.Duration {
	if b.maxWait <= 0 {
		return interval
	}
	if remaining := b.maxWait - b.Elapsed(); remaining < interval {
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return interval
}

// Wait sleeps until the next attempt. It returns a nil kind when polling may
// continue, dcprobe.ErrTimeout if the budget is exhausted before or during the
// sleep, and dcprobe.ErrCancelled with the context error if ctx is done.
func (b Budget) Wait(ctx context.Context, interval time.Duration, sleep SleepFunc) (kind error, cause error) {
	if b.Exceeded() {
		return dcprobe.ErrTimeout, nil
	}
	if err := sleep(ctx, b.Next(interval)); err != nil {
		return dcprobe.ErrCancelled, err
	}
	if err := ctx.Err(); err != nil {
		return dcprobe.ErrCancelled, err
	}
	if b.Exceeded() {
		return dcprobe.ErrTimeout, nil
	}
	return nil, nil
}

// Classify returns the kind of a failed statement: ErrCancelled if the
// context ended, ErrClusterError otherwise.
func Classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dcprobe.ErrCancelled
	default:
		return dcprobe.ErrClusterError
	}
}
