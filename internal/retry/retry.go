package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

// Callable is invoked once per attempt, attempts are counted from 1
type Callable func(attempt int) error

type recoverable struct {
	error
	attempt int
}

func (e *recoverable) Unwrap() error {
	return e.error
}

// Error marks err as recoverable, the callable will be invoked again
func Error(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &recoverable{error: err, attempt: attempt}
}

// Backoff yields the delay before the next attempt, stop is true once the
// attempts are used up
type Backoff interface {
	Next() (delay time.Duration, stop bool)
	Attempt() int
}

// Start invokes cb until it succeeds, returns an error not marked with
// Error, runs out of attempts or the context is done.
func Start(ctx context.Context, b Backoff, cb Callable) error {
	for {
		err := cb(b.Attempt())
		if err == nil {
			return nil
		}

		var rErr *recoverable
		if !errors.As(err, &rErr) {
			return errors.Wrapf(err, "attempt %d failed", b.Attempt())
		}

		delay, stop := b.Next()
		if stop {
			return errors.Wrapf(ErrTooManyAttempts, "last error: %s", rErr.error.Error())
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), rErr.error.Error())
		case <-timer.C:
		}
	}
}

func Incremental(ctx context.Context, step time.Duration, maxAttempts int, cb Callable) error {
	return Start(ctx, NewIncremental(step, 0, maxAttempts), cb)
}

type incremental struct {
	step, maxDelay time.Duration
	delay          time.Duration
	attempt, max   int
}

// NewIncremental waits one step longer before every next attempt. A
// positive maxDelay caps the wait.
func NewIncremental(step, maxDelay time.Duration, maxAttempts int) Backoff {
	return &incremental{
		step:     step,
		maxDelay: maxDelay,
		attempt:  1,
		max:      maxAttempts,
	}
}

func (b *incremental) Next() (time.Duration, bool) {
	b.attempt++
	if b.attempt > b.max {
		return 0, true
	}

	b.delay += b.step
	if b.maxDelay > 0 && b.delay > b.maxDelay {
		b.delay = b.maxDelay
	}

	return b.delay, false
}

func (b *incremental) Attempt() int {
	return b.attempt
}
