// Package retry adapts cenkalti/backoff to a small attempt-counting policy
// with an injectable sleep, so callers can log attempts and tests can run
// without waiting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when every attempt of a policy failed.
var ErrExhausted = errors.New("retries exhausted")

// Permanent wraps err so that Do stops immediately and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// BackoffFunc builds a fresh backoff schedule for one Do call.
type BackoffFunc func() backoff.BackOff

// Exponential waits base*2, base*4, ... after the first, second, ... failure.
func Exponential(base time.Duration) BackoffFunc {
	return func() backoff.BackOff {
		b := &backoff.ExponentialBackOff{
			InitialInterval:     2 * base,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         time.Hour,
			MaxElapsedTime:      0,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		}
		b.Reset()
		return b
	}
}

// Fixed waits the same duration between every attempt.
func Fixed(d time.Duration) BackoffFunc {
	return func() backoff.BackOff { return backoff.NewConstantBackOff(d) }
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
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

// sleepTimer drives backoff's wait through a SleepFunc.
type sleepTimer struct {
	ctx   context.Context
	sleep SleepFunc
	c     chan time.Time
}

func newSleepTimer(ctx context.Context, sleep SleepFunc) *sleepTimer {
	return &sleepTimer{ctx: ctx, sleep: sleep, c: make(chan time.Time, 1)}
}

func (t *sleepTimer) Start(d time.Duration) {
	// A cancelled sleep still fires; the next attempt sees ctx.Err().
	_ = t.sleep(t.ctx, d)
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

// Policy describes how many times an operation is attempted and how long
// to wait between attempts.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       SleepFunc

	// OnRetry, if set, is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do runs op until it succeeds, returns a Permanent error, the context is
// cancelled, or MaxAttempts is reached. op receives the 1-based attempt number.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var schedule backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Backoff != nil {
		schedule = p.Backoff()
	}
	schedule = backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(attempts-1)), ctx)

	attempt := 0
	stopped := false
	operation := func() error {
		if err := ctx.Err(); err != nil {
			stopped = true
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx, attempt)
		if IsPermanent(err) {
			stopped = true
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, schedule, notify, newSleepTimer(ctx, sleep))
	switch {
	case err == nil, stopped:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, err)
}
