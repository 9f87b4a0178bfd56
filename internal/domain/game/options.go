package game

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/domain/registry"
	"github.com/okian/clickrace/internal/domain/validator"
	"github.com/okian/clickrace/internal/domain/window"
)

// Option applies a configuration option to the game.
type Option func(*State)

// WithClock sets the clock for round start times.
func WithClock(c clockwork.Clock) Option {
	return func(g *State) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithRegistry sets the participant registry.
func WithRegistry(r registry.Registry) Option {
	return func(g *State) {
		if r != nil {
			g.registry = r
		}
	}
}

// WithEventDuration sets the round length; zero means rounds end only on request.
func WithEventDuration(d time.Duration) Option {
	return func(g *State) {
		g.windowOpts = append(g.windowOpts, window.WithDuration(d))
	}
}

// WithValidatorOptions passes thresholds through to the click validator.
func WithValidatorOptions(opts ...validator.Option) Option {
	return func(g *State) {
		g.validatorOpts = append(g.validatorOpts, opts...)
	}
}
