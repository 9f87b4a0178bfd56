// Package repository is the durable store shared by the primary and every
// worker: accepted clicks, disqualifications, rounds, worker liveness, users
// and winners.
package repository

import (
	"context"

	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/types"
)

// Store provides read/write access to the aggregation state. Every mutating
// operation is a single SQL statement.
type Store interface {
	// RecordClick appends one accepted click.
	RecordClick(ctx context.Context, c model.Click) error
	// RecordDisqualification inserts the first disqualification for the
	// (session, user) pair. Returns false when one already existed.
	RecordDisqualification(ctx context.Context, d model.Disqualification) (bool, error)
	// IsDisqualified reports whether any worker disqualified the user in the session.
	IsDisqualified(ctx context.Context, sessionID, userID string) (bool, error)
	// Leaderboard ranks users in the session by accepted clicks, excluding
	// every disqualified user.
	Leaderboard(ctx context.Context, sessionID string, limit int) ([]types.Entry, error)
	// UserClickCount returns the accepted clicks of one user in the session.
	UserClickCount(ctx context.Context, sessionID, userID string) (int, error)
	// SessionStats summarizes a round.
	SessionStats(ctx context.Context, sessionID string) (Stats, error)

	StartSession(ctx context.Context, id string) (model.Session, error)
	EndSession(ctx context.Context, id string) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	// ActiveSession returns the most recently started round that has not ended.
	ActiveSession(ctx context.Context) (model.Session, error)
	// LatestSession returns the most recently started round in any state.
	LatestSession(ctx context.Context) (model.Session, error)

	// UpsertHeartbeat records liveness, keeping the slot's first startedAt.
	UpsertHeartbeat(ctx context.Context, workerID, pid int, now int64) error
	MarkWorkerExited(ctx context.Context, workerID int) error
	ActiveWorkers(ctx context.Context) ([]model.Worker, error)
	Workers(ctx context.Context) ([]model.Worker, error)

	CreateUser(ctx context.Context, userID, password, address string) (model.User, error)
	FindUser(ctx context.Context, userID string) (model.User, error)
	Authenticate(ctx context.Context, userID, password string) (model.User, error)

	SaveWinner(ctx context.Context, w model.Winner) (model.Winner, error)
	ListWinners(ctx context.Context, limit int) ([]model.Winner, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Stats summarizes one round.
type Stats struct {
	SessionID    string `json:"sessionId"`
	TotalClicks  int64  `json:"totalClicks"`
	Participants int64  `json:"participants"`
	Disqualified int64  `json:"disqualified"`
	Workers      int64  `json:"contributingWorkers"`
}
