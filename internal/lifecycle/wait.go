package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"collective/internal/logging"
	"collective/internal/services"
)

// HeightSource reports the current block height.
type HeightSource interface {
	BlockHeight(ctx context.Context) (uint64, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// WaitOptions tunes a Waiter. Zero MaxSleep and Timeout mean no cap.
type WaitOptions struct {
	Interval time.Duration
	MaxSleep time.Duration
	Timeout  time.Duration
	Sleep    SleepFunc
	Now      func() time.Time
	Logger   *slog.Logger
}

// Waiter blocks until the ledger reaches a target height, sleeping in
// proportion to the remaining block gap.
type Waiter struct {
	heights  HeightSource
	interval time.Duration
	maxSleep time.Duration
	timeout  time.Duration
	sleep    SleepFunc
	now      func() time.Time
	logger   *slog.Logger
}

// NewWaiter builds a Waiter over heights.
func NewWaiter(heights HeightSource, opts WaitOptions) *Waiter {
	w := &Waiter{
		heights:  heights,
		interval: opts.Interval,
		maxSleep: opts.MaxSleep,
		timeout:  opts.Timeout,
		sleep:    opts.Sleep,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if w.interval <= 0 {
		w.interval = time.Second
	}
	if w.sleep == nil {
		w.sleep = sleepContext
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	return w
}

// SleepFor returns interval multiplied by the remaining block gap. A target at
// or below current yields zero: proceed immediately.
func SleepFor(interval time.Duration, current, target uint64) time.Duration {
	if target <= current || interval <= 0 {
		return 0
	}
	gap := target - current
	if gap > uint64(math.MaxInt64/int64(interval)) {
		return time.Duration(math.MaxInt64)
	}
	return interval * time.Duration(gap)
}

// Deadline returns the instant a wait begun now must give up, or the zero
// time when the waiter has no timeout.
func (w *Waiter) Deadline() time.Time {
	if w.timeout <= 0 {
		return time.Time{}
	}
	return w.now().Add(w.timeout)
}

// Until polls until the height is at least target and returns the last height
// read. Cancellation abandons the wait with ctx.Err().
func (w *Waiter) Until(ctx context.Context, target uint64, phase string) (uint64, error) {
	return w.UntilDeadline(ctx, target, phase, w.Deadline())
}

// UntilDeadline is Until bounded by a caller-supplied deadline, so several
// waits can share one ceiling. A zero deadline never expires.
func (w *Waiter) UntilDeadline(ctx context.Context, target uint64, phase string, deadline time.Time) (uint64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		height, err := w.heights.BlockHeight(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, err
		}
		if height >= target {
			return height, nil
		}

		d, err := w.bound(w.clamp(SleepFor(w.interval, height, target)), deadline,
			fmt.Sprintf("%s: block %d not reached within %s (height %d)", phase, target, w.timeout, height))
		if err != nil {
			return height, err
		}
		w.logger.Info("waiting for block",
			logging.String("phase", phase),
			logging.Uint64("height", height),
			logging.Uint64("target", target),
			logging.Duration("sleep", d),
		)
		if err := w.sleep(ctx, d); err != nil {
			return height, err
		}
	}
}

// PauseDeadline sleeps one poll interval, cut short by deadline. A deadline
// already passed yields ErrWaitTimeout without sleeping.
func (w *Waiter) PauseDeadline(ctx context.Context, phase string, deadline time.Time) error {
	d, err := w.bound(w.clamp(w.interval), deadline, fmt.Sprintf("%s: not finished within %s", phase, w.timeout))
	if err != nil {
		return err
	}
	return w.sleep(ctx, d)
}

func (w *Waiter) bound(d time.Duration, deadline time.Time, detail string) (time.Duration, error) {
	if deadline.IsZero() {
		return d, nil
	}
	remaining := deadline.Sub(w.now())
	if remaining <= 0 {
		return 0, services.Wrap(services.ErrWaitTimeout, "", "", detail, nil)
	}
	return min(d, remaining), nil
}

func (w *Waiter) clamp(d time.Duration) time.Duration {
	if w.maxSleep > 0 && d > w.maxSleep {
		return w.maxSleep
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
