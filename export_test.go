package ddns

import "time"

// WithClock replaces the time source used for State.LastCheckedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler, _ *settings) error {
		r.now = now
		return nil
	}
}
