package ingress

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithIdleTimeout closes connections that send nothing for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.idleTimeout = d
		}
	}
}

// WithPartialTimeout bounds how long an incomplete document waits for the
// rest of its bytes before it is answered with INVALID_FORMAT.
func WithPartialTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.partialTimeout = d
		}
	}
}

// WithClock sets the clock used to stamp clicks that carry no timestamp.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithReusePort toggles SO_REUSEPORT on the listening socket.
func WithReusePort(enabled bool) Option {
	return func(s *Server) {
		s.reusePort = enabled
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
