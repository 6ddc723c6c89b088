// Package poll waits on remote jobs (BLAST searches, alignment jobs) with a
// bounded number of status checks and a fixed or growing delay between them.
package poll

import (
	"context"
	stderrors "errors"
	"time"

	"curiesuite/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds one polling loop. Multiplier <= 1 means a fixed Interval.
// Timeout and MaxAttempts of zero disable that bound, but at least one of
// them must be set.
type Policy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxInterval  time.Duration
	Multiplier   float64
	Timeout      time.Duration
	MaxAttempts  int

	// OnWait is called before each sleep with the attempt just made
	OnWait func(attempt int, next time.Duration)
}

// Fixed returns a constant-delay policy
func Fixed(interval, timeout time.Duration, maxAttempts int) Policy {
	return Policy{Interval: interval, Timeout: timeout, MaxAttempts: maxAttempts}
}

// CheckFunc reports whether the job is done. A returned error ends polling.
type CheckFunc func(ctx context.Context) (done bool, err error)

var errPending = stderrors.New("job still pending")

// Until calls check until it reports done, returns an error, the attempt
// budget runs out or the timeout elapses. Running out of attempts or time
// yields a TIMEOUT error; cancellation of ctx yields ctx.Err().
func Until(ctx context.Context, p Policy, check CheckFunc) error {
	if p.Interval <= 0 {
		return errors.InvalidInput("poll interval must be positive")
	}
	if p.Timeout <= 0 && p.MaxAttempts <= 0 {
		return errors.InvalidInput("poll policy needs a timeout or an attempt limit")
	}

	pollCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if p.InitialDelay > 0 {
		t := time.NewTimer(p.InitialDelay)
		select {
		case <-pollCtx.Done():
			t.Stop()
			return finish(ctx, pollCtx.Err(), 0)
		case <-t.C:
		}
	}

	attempts := 0
	op := func() error {
		attempts++
		done, err := check(pollCtx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errPending
		}
		return nil
	}

	b := p.backOff()
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	notify := func(_ error, next time.Duration) {
		if p.OnWait != nil {
			p.OnWait(attempts, next)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, pollCtx), notify)
	return finish(ctx, err, attempts)
}

func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Interval)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Interval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.MaxInterval = p.Interval
	if p.MaxInterval > p.Interval {
		eb.MaxInterval = p.MaxInterval
	}
	eb.Reset()
	return eb
}

func finish(parent context.Context, err error, attempts int) error {
	switch {
	case err == nil:
		return nil
	case parent.Err() != nil:
		return parent.Err()
	case stderrors.Is(err, errPending):
		return errors.Timeout("polling", errors.Newf(errors.CodeTimeout, "still pending after %d attempts", attempts))
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout("polling", errors.Newf(errors.CodeTimeout, "gave up after %d attempts", attempts))
	default:
		return err
	}
}
