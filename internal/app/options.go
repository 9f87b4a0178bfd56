package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/domain/auth"
	"github.com/okian/clickrace/pkg/logger"
)

// RuntimeOption applies a configuration option to the Runtime.
type RuntimeOption func(*Runtime)

// WithWorkerID sets the supervisor slot the runtime reports as.
func WithWorkerID(id int) RuntimeOption {
	return func(r *Runtime) {
		r.workerID = id
	}
}

// WithPID overrides the process id reported in heartbeats.
func WithPID(pid int) RuntimeOption {
	return func(r *Runtime) {
		if pid > 0 {
			r.pid = pid
		}
	}
}

// WithRuntimeClock sets the clock used for heartbeats.
func WithRuntimeClock(c clockwork.Clock) RuntimeOption {
	return func(r *Runtime) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithHeartbeatInterval sets how often liveness is reported.
func WithHeartbeatInterval(d time.Duration) RuntimeOption {
	return func(r *Runtime) {
		if d > 0 {
			r.heartbeatInterval = d
		}
	}
}

// WithConnectionCount sets the source of the open connection count.
func WithConnectionCount(fn func() int) RuntimeOption {
	return func(r *Runtime) {
		if fn != nil {
			r.connections = fn
		}
	}
}

// WithQueueDepth sets the source of the pending write count.
func WithQueueDepth(fn func() int) RuntimeOption {
	return func(r *Runtime) {
		if fn != nil {
			r.queueDepth = fn
		}
	}
}

// WithRuntimeLogger sets a custom logger for the runtime.
func WithRuntimeLogger(l logger.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// ControllerOption applies a configuration option to the Controller.
type ControllerOption func(*Controller)

// WithClock sets the clock used for winner timestamps and the settle delay.
func WithClock(c clockwork.Clock) ControllerOption {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithTokens sets the bearer token store.
func WithTokens(t auth.TokenStore) ControllerOption {
	return func(ctl *Controller) {
		if t != nil {
			ctl.tokens = t
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard size.
func WithLeaderboardLimits(def, maximum int) ControllerOption {
	return func(ctl *Controller) {
		if def > 0 {
			ctl.defaultLimit = def
		}
		if maximum >= ctl.defaultLimit {
			ctl.maxLimit = maximum
		}
	}
}

// WithSettleDelay sets how long EndEvent waits for in-flight writes before
// resolving the winner.
func WithSettleDelay(d time.Duration) ControllerOption {
	return func(ctl *Controller) {
		if d >= 0 {
			ctl.settle = d
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) ControllerOption {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}
