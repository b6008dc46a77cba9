// Package backoff describes bounded retry schedules independent of real time.
package backoff

import (
	"context"
	"math"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy is an explicit retry schedule: how many attempts, the delay between
// attempts and the pause after an item exhausts its attempts.
type Policy struct {
	MaxAttempts  int
	Delay        time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       float64
	FailureDelay time.Duration
	Sleep        Sleeper
}

// Default mirrors the generation batch schedule: 3 attempts, 1s apart, 2s
// pause after a sustained failure.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		Delay:        time.Second,
		Multiplier:   1,
		FailureDelay: 2 * time.Second,
	}
}

// WithAttempts returns a copy with a different attempt budget; n < 1 keeps the current one.
func (p Policy) WithAttempts(n int) Policy {
	if n >= 1 {
		p.MaxAttempts = n
	}
	return p
}

// Attempts is the effective attempt budget (at least 1).
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// schedule builds the delay sequence between attempts.
func (p Policy) schedule() *cbackoff.ExponentialBackOff {
	b := cbackoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = math.Max(p.Multiplier, 1)
	b.RandomizationFactor = p.Jitter
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// DelayAfter returns the wait after failed attempt n (1-based).
func (p Policy) DelayAfter(attempt int) time.Duration {
	b := p.schedule()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Wait sleeps for d using the policy's sleeper.
func (p Policy) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = RealSleep
	}
	return sleep(ctx, d)
}

// Retry runs fn up to Attempts times, waiting DelayAfter between failures.
// It returns the number of attempts made and the last error.
func (p Policy) Retry(ctx context.Context, fn func(attempt int) error) (int, error) {
	var timer *sleeperTimer
	if p.Sleep != nil {
		timer = &sleeperTimer{ctx: ctx, policy: p, fired: make(chan time.Time, 1)}
	}

	attempts := 0
	op := func() error {
		if timer != nil && timer.err != nil {
			return cbackoff.Permanent(timer.err)
		}
		if err := ctx.Err(); err != nil {
			return cbackoff.Permanent(err)
		}
		attempts++
		return fn(attempts)
	}

	b := cbackoff.WithContext(cbackoff.WithMaxRetries(p.schedule(), uint64(p.Attempts()-1)), ctx)

	var err error
	if timer != nil {
		err = cbackoff.RetryNotifyWithTimer(op, b, nil, timer)
	} else {
		err = cbackoff.RetryNotify(op, b, nil)
	}
	return attempts, err
}

// sleeperTimer adapts a Sleeper to the retry loop's timer.
type sleeperTimer struct {
	ctx    context.Context
	policy Policy
	fired  chan time.Time
	err    error
}

func (t *sleeperTimer) Start(d time.Duration) {
	if err := t.policy.Wait(t.ctx, d); err != nil {
		t.err = err
	}
	select {
	case t.fired <- time.Now():
	default:
	}
}

func (t *sleeperTimer) Stop() {}

func (t *sleeperTimer) C() <-chan time.Time { return t.fired }

// RealSleep blocks on a timer.
func RealSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
