package validator

import "time"

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithRateWindow sets the sliding window used for burst detection.
func WithRateWindow(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.rateWindow = d.Milliseconds()
		}
	}
}

// WithMaxClicksInWindow sets how many accepted clicks the rate window may already hold.
func WithMaxClicksInWindow(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxClicks = n
		}
	}
}

// WithRetention sets how long accepted timestamps are kept per user.
func WithRetention(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.retention = d.Milliseconds()
		}
	}
}

// WithInactivityTimeout sets the gap after which the next click disqualifies.
func WithInactivityTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.inactivity = d.Milliseconds()
		}
	}
}
