package ddns

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// RetryPolicy runs a fallible operation up to Attempts times,
// sleeping Backoff between attempts.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration

	// Sleep waits for d or until ctx is done. Nil means a timer based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is ten attempts ten seconds apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 10, Backoff: 10 * time.Second}

// Do calls fn until it succeeds, returns an error whose Kind is not retryable,
// the attempts are exhausted, or ctx is done. It returns fn's last error.
func (p RetryPolicy) Do(ctx context.Context, logger logr.Logger, op string, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		retryAttempts.WithLabelValues(op).Inc()
		if !KindOf(err).Retryable() {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.V(1).Info("attempt failed, retrying", "op", op, "attempt", attempt, "of", attempts, "backoff", p.Backoff.String(), "err", err.Error())
		if serr := sleep(ctx, p.Backoff); serr != nil {
			return err
		}
	}
	logger.Info("giving up after retries", "op", op, "attempts", attempts, "err", err.Error())
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
