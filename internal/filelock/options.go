package filelock

import "time"

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used to stamp AcquiredAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}
