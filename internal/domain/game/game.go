// Package game composes the event window, the participant registry and the
// click validator behind a single click entry point.
package game

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/registry"
	"github.com/okian/clickrace/internal/domain/types"
	"github.com/okian/clickrace/internal/domain/validator"
	"github.com/okian/clickrace/internal/domain/window"
	"github.com/okian/clickrace/pkg/metrics"
)

// State is the game of one process. All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	clock         clockwork.Clock
	registry      registry.Registry
	window        *window.EventWindow
	validator     *validator.Validator
	windowOpts    []window.Option
	validatorOpts []validator.Option
}

// New creates a game with no active round.
func New(opts ...Option) *State {
	g := &State{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = registry.NewInMemoryRegistry()
	}
	g.window = window.New(append([]window.Option{window.WithClock(g.clock)}, g.windowOpts...)...)
	g.validator = validator.New(g.validatorOpts...)
	return g
}

// Now returns the game clock in epoch milliseconds.
func (g *State) Now() int64 {
	return g.clock.Now().UnixMilli()
}

// RegisterUser admits a participant for the lifetime of the process.
func (g *State) RegisterUser(ctx context.Context, userID string) {
	if !g.registry.Register(ctx, userID) {
		metrics.UpdateRegisteredUsers(int(g.registry.Size()))
	}
}

// IsRegistered reports whether the participant has been admitted.
func (g *State) IsRegistered(ctx context.Context, userID string) bool {
	return g.registry.IsRegistered(ctx, userID)
}

// RegisterClick decides a click against whatever round is current.
func (g *State) RegisterClick(ctx context.Context, userID string, ts int64) model.Decision {
	return g.RegisterSessionClick(ctx, "", userID, ts)
}

// RegisterSessionClick decides a click addressed to sessionID. Gates apply in
// order: registration, then round activity, then the validator. A non-empty
// sessionID that is not the current round counts as no active round.
func (g *State) RegisterSessionClick(ctx context.Context, sessionID, userID string, ts int64) model.Decision {
	if !g.registry.IsRegistered(ctx, userID) {
		return model.Reject(model.ReasonNotRegistered, ts)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.window.IsActive(ts) || (sessionID != "" && sessionID != g.window.SessionID()) {
		return model.Reject(model.ReasonEventNotActive, ts)
	}
	d := g.validator.Validate(userID, ts)
	d.SessionID = g.window.SessionID()
	return d
}

// StartEvent opens a new round now. Validator state from earlier rounds is dropped.
func (g *State) StartEvent(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window.Start(sessionID)
	g.validator.Reset()
	metrics.UpdateEventActive(true)
}

// AdoptEvent joins a round that started at startedAt. Adopting the current
// round again keeps validator state.
func (g *State) AdoptEvent(sessionID string, startedAt int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.window.SessionID() != sessionID {
		g.validator.Reset()
	}
	g.window.StartAt(sessionID, startedAt)
	metrics.UpdateEventActive(true)
}

// EndEvent closes the round and returns the local winner, or nil when no
// eligible user clicked.
func (g *State) EndEvent() *types.Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window.End()
	metrics.UpdateEventActive(false)

	board := g.validator.Leaderboard()
	if len(board) == 0 {
		return nil
	}
	top := board[0]
	return &top
}

// Leaderboard returns this process's local ranking.
func (g *State) Leaderboard() []types.Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.validator.Leaderboard()
}

// Window returns a snapshot of the current round.
func (g *State) Window() window.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.window.Snapshot()
}
