package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy is an exponential backoff: BaseDelay, 2*BaseDelay, 4*BaseDelay... capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the delay before the given retry, counting from 1.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 31 {
		return p.MaxDelay
	}
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a Permanent error, the attempts run out or ctx is done.
// The last error is returned.
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.Backoff(attempt)
			logrus.Debugf("%s: retry %d/%d in %s: %v", name, attempt, attempts-1, delay, err)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}
