package repository

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithClock sets the clock used for session and user timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *SQLStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSlowQueryThreshold logs statements slower than d.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.slowQuery = d
		}
	}
}

// WithBusyTimeout sets how long sqlite waits on a lock held by another process.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
