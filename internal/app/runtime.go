// Package service composes the worker runtime and the control service from
// the domain and adapter packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/adapters/ipc"
	"github.com/okian/clickrace/internal/adapters/mq/queue"
	"github.com/okian/clickrace/internal/adapters/repository"
	"github.com/okian/clickrace/internal/adapters/tcp/ingress"
	"github.com/okian/clickrace/internal/domain/game"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/types"
	"github.com/okian/clickrace/pkg/logger"
	"github.com/okian/clickrace/pkg/metrics"
)

const defaultHeartbeatInterval = 2 * time.Second

// RuntimeStore is what a worker reads from the aggregation store.
type RuntimeStore interface {
	FindUser(ctx context.Context, userID string) (model.User, error)
	ActiveSession(ctx context.Context) (model.Session, error)
}

// Submitter accepts durable writes; the writer pool implements it.
type Submitter interface {
	Submit(ctx context.Context, item queue.Write)
}

// Runtime is one worker: it decides clicks with its own game state and
// forwards accepted clicks and disqualifications to the durable store.
type Runtime struct {
	workerID int
	pid      int

	game   *game.State
	store  RuntimeStore
	writes Submitter
	clock  clockwork.Clock

	heartbeatInterval time.Duration
	connections       func() int
	queueDepth        func() int

	accepted atomic.Int64
	rejected atomic.Int64

	logger logger.Logger
}

// NewRuntime creates a worker runtime around g.
func NewRuntime(g *game.State, store RuntimeStore, writes Submitter, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		pid:               os.Getpid(),
		game:              g,
		store:             store,
		writes:            writes,
		clock:             clockwork.NewRealClock(),
		heartbeatInterval: defaultHeartbeatInterval,
		connections:       func() int { return 0 },
		queueDepth:        func() int { return 0 },
		logger:            logger.Get().Named("runtime"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WorkerID returns the supervisor slot of this runtime.
func (r *Runtime) WorkerID() int { return r.workerID }

// Boot joins the round that is currently active in the store, if any.
func (r *Runtime) Boot(ctx context.Context) error {
	s, err := r.store.ActiveSession(ctx)
	if errors.Is(err, repository.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("adopt active session: %w", err)
	}
	r.game.AdoptEvent(s.ID, s.StartedAt)
	r.logger.Info(ctx, "adopted active round",
		logger.String("session", s.ID),
		logger.Int64("startedAt", s.StartedAt),
	)
	return nil
}

// HandleClick decides one click and queues its durable side effects.
func (r *Runtime) HandleClick(ctx context.Context, c ingress.Click) model.Decision {
	r.admit(ctx, c.UserID)
	d := r.game.RegisterSessionClick(ctx, c.SessionID, c.UserID, c.Timestamp)
	r.record(ctx, c.UserID, d)
	return d
}

// admit registers users that signed up through the control API the first
// time they click on this worker.
func (r *Runtime) admit(ctx context.Context, userID string) {
	if r.game.IsRegistered(ctx, userID) {
		return
	}
	if _, err := r.store.FindUser(ctx, userID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Error(ctx, "user lookup failed", logger.String("user", userID), logger.Error(err))
		}
		return
	}
	r.game.RegisterUser(ctx, userID)
}

func (r *Runtime) record(ctx context.Context, userID string, d model.Decision) {
	if d.Accepted {
		r.accepted.Add(1)
		metrics.RecordClick("accepted")
		r.writes.Submit(ctx, queue.ClickWrite(model.Click{
			SessionID: d.SessionID,
			UserID:    userID,
			WorkerID:  r.workerID,
			Timestamp: d.Timestamp,
		}))
		return
	}

	r.rejected.Add(1)
	metrics.RecordClick(string(d.Reason))
	if !d.JustDisqualified {
		r.logger.Debug(ctx, "click rejected",
			logger.String("user", userID),
			logger.String("reason", string(d.Reason)),
		)
		return
	}

	metrics.RecordDisqualification(string(d.Reason))
	r.logger.Info(ctx, "user disqualified",
		logger.String("user", userID),
		logger.String("session", d.SessionID),
		logger.String("reason", string(d.Reason)),
		logger.Int("clicks", d.Count),
	)
	r.writes.Submit(ctx, queue.DisqualificationWrite(model.Disqualification{
		SessionID:      d.SessionID,
		UserID:         userID,
		Reason:         d.Reason,
		WorkerID:       r.workerID,
		DisqualifiedAt: d.Timestamp,
	}))
}

// BroadcastStart opens the round locally. In single-process mode the
// runtime is the control broadcaster.
func (r *Runtime) BroadcastStart(ctx context.Context, s model.Session) error {
	r.game.AdoptEvent(s.ID, s.StartedAt)
	r.logger.Info(ctx, "round started", logger.String("session", s.ID))
	return nil
}

// BroadcastEnd closes the round locally.
func (r *Runtime) BroadcastEnd(ctx context.Context, sessionID string) error {
	r.EndEvent(ctx, sessionID)
	return nil
}

// EndEvent closes the local round and returns the local winner.
func (r *Runtime) EndEvent(ctx context.Context, sessionID string) *types.Entry {
	if current := r.game.Window().SessionID; sessionID != "" && current != sessionID {
		r.logger.Warn(ctx, "end for a round this worker is not running",
			logger.String("session", sessionID),
			logger.String("current", current),
		)
	}
	winner := r.game.EndEvent()
	fields := []logger.Field{logger.String("session", sessionID)}
	if winner != nil {
		fields = append(fields, logger.String("localWinner", winner.UserID), logger.Int("clicks", winner.ClickCount))
	}
	r.logger.Info(ctx, "round ended", fields...)
	return winner
}

// Stats returns the counters reported with each heartbeat.
func (r *Runtime) Stats() ipc.Stats {
	return ipc.Stats{
		Accepted:    r.accepted.Load(),
		Rejected:    r.rejected.Load(),
		Connections: r.connections(),
		QueueDepth:  r.queueDepth(),
	}
}
