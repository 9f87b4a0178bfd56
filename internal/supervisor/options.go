package supervisor

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/adapters/ipc"
	"github.com/okian/clickrace/pkg/logger"
)

// Option applies a configuration option to the Supervisor.
type Option func(*Supervisor)

// WithWorkers sets the fleet size.
func WithWorkers(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRestartBackoff delays respawns. Zero respawns immediately.
func WithRestartBackoff(d time.Duration) Option {
	return func(s *Supervisor) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

// WithClock sets the clock used for backoff and broadcast timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocalWinnerHandler is called for every LOCAL_WINNER report.
func WithLocalWinnerHandler(fn func(workerID int, msg ipc.Message)) Option {
	return func(s *Supervisor) {
		s.onWinner = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}
