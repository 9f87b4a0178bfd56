package api

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/pkg/logger"
)

const defaultStreamInterval = time.Second

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithStreamInterval sets how often the leaderboard stream pushes a snapshot.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// WithClock sets the clock that paces the leaderboard stream.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
