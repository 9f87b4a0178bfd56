package window

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Option applies a configuration option to the EventWindow.
type Option func(*EventWindow)

// WithClock sets the clock used for start times and expiry.
func WithClock(c clockwork.Clock) Option {
	return func(w *EventWindow) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithDuration sets the round length. Zero disables expiry so only End closes the round.
func WithDuration(d time.Duration) Option {
	return func(w *EventWindow) {
		if d >= 0 {
			w.duration = d
		}
	}
}
