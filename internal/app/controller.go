package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/adapters/repository"
	"github.com/okian/clickrace/internal/domain/auth"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/types"
	"github.com/okian/clickrace/pkg/logger"
)

// Default control configuration constants.
const (
	defaultLeaderboardLimit = 10
	defaultMaxLimit         = 100
	defaultSettleDelay      = 250 * time.Millisecond
)

// ControlStore is the slice of the aggregation store the control service reads and writes.
type ControlStore interface {
	Leaderboard(ctx context.Context, sessionID string, limit int) ([]types.Entry, error)
	IsDisqualified(ctx context.Context, sessionID, userID string) (bool, error)
	UserClickCount(ctx context.Context, sessionID, userID string) (int, error)
	SessionStats(ctx context.Context, sessionID string) (repository.Stats, error)

	StartSession(ctx context.Context, id string) (model.Session, error)
	EndSession(ctx context.Context, id string) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	ActiveSession(ctx context.Context) (model.Session, error)
	LatestSession(ctx context.Context) (model.Session, error)

	Workers(ctx context.Context) ([]model.Worker, error)

	CreateUser(ctx context.Context, userID, password, address string) (model.User, error)
	FindUser(ctx context.Context, userID string) (model.User, error)
	Authenticate(ctx context.Context, userID, password string) (model.User, error)

	SaveWinner(ctx context.Context, w model.Winner) (model.Winner, error)
	ListWinners(ctx context.Context, limit int) ([]model.Winner, error)
}

// Broadcaster delivers round transitions to every worker.
type Broadcaster interface {
	BroadcastStart(ctx context.Context, s model.Session) error
	BroadcastEnd(ctx context.Context, sessionID string) error
}

// Board is a ranked view of one round.
type Board struct {
	SessionID string        `json:"sessionId,omitempty"`
	Entries   []types.Entry `json:"leaderboard"`
}

// PlayerStatus is one user's standing in a round.
type PlayerStatus struct {
	UserID       string `json:"userId"`
	ClickCount   int    `json:"clickCount"`
	Disqualified bool   `json:"disqualified"`
}

// EventStatus describes a round and, when asked, one player in it.
type EventStatus struct {
	Session *model.Session `json:"session"`
	Player  *PlayerStatus  `json:"player,omitempty"`
}

// Controller runs rounds for the whole fleet from the primary process.
type Controller struct {
	// serializes round transitions
	mu sync.Mutex

	store  ControlStore
	bc     Broadcaster
	tokens auth.TokenStore
	clock  clockwork.Clock

	defaultLimit int
	maxLimit     int
	settle       time.Duration

	logger logger.Logger
}

// NewController creates a control service.
func NewController(store ControlStore, bc Broadcaster, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:        store,
		bc:           bc,
		clock:        clockwork.NewRealClock(),
		defaultLimit: defaultLeaderboardLimit,
		maxLimit:     defaultMaxLimit,
		settle:       defaultSettleDelay,
		logger:       logger.Get().Named("control"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = auth.NewMemoryTokens(auth.WithClock(c.clock))
	}
	return c
}

// StartEvent opens round id on every worker. An empty id gets a generated
// one. A different round that is still open is ended first.
func (c *Controller) StartEvent(ctx context.Context, id string) (model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	prev, err := c.store.ActiveSession(ctx)
	switch {
	case err == nil && prev.ID != id:
		if _, err := c.store.EndSession(ctx, prev.ID); err != nil && !errors.Is(err, repository.ErrSessionEnded) {
			return model.Session{}, fmt.Errorf("end previous round: %w", err)
		}
		c.broadcastEnd(ctx, prev.ID)
		c.logger.Info(ctx, "previous round ended by a new start", logger.String("session", prev.ID))
	case err != nil && !errors.Is(err, repository.ErrNoActiveSession):
		return model.Session{}, err
	}

	s, err := c.store.StartSession(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	if err := c.bc.BroadcastStart(ctx, s); err != nil {
		c.logger.Warn(ctx, "start did not reach every worker", logger.String("session", s.ID), logger.Error(err))
	}
	c.logger.Info(ctx, "round started", logger.String("session", s.ID), logger.Int64("startedAt", s.StartedAt))
	return s, nil
}

// EndEvent closes the open round everywhere and records the fleet winner.
// The returned winner is nil when nobody eligible clicked. Ending with no
// round open is not an error: it returns a zero Session and no winner.
func (c *Controller) EndEvent(ctx context.Context) (model.Session, *model.Winner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.store.ActiveSession(ctx)
	if errors.Is(err, repository.ErrNoActiveSession) {
		c.logger.Info(ctx, "end requested with no open round")
		return model.Session{}, nil, nil
	}
	if err != nil {
		return model.Session{}, nil, err
	}
	ended, err := c.store.EndSession(ctx, active.ID)
	if err != nil {
		return model.Session{}, nil, err
	}
	c.broadcastEnd(ctx, ended.ID)

	if c.settle > 0 {
		select {
		case <-ctx.Done():
			return ended, nil, ctx.Err()
		case <-c.clock.After(c.settle):
		}
	}

	winner, err := c.resolveWinner(ctx, ended)
	if err != nil {
		return ended, nil, err
	}
	fields := []logger.Field{logger.String("session", ended.ID)}
	if winner != nil {
		fields = append(fields, logger.String("winner", winner.UserID), logger.Int("clicks", winner.ClickCount))
	}
	c.logger.Info(ctx, "round ended", fields...)
	return ended, winner, nil
}

func (c *Controller) broadcastEnd(ctx context.Context, sessionID string) {
	if err := c.bc.BroadcastEnd(ctx, sessionID); err != nil {
		c.logger.Warn(ctx, "end did not reach every worker", logger.String("session", sessionID), logger.Error(err))
	}
}

func (c *Controller) resolveWinner(ctx context.Context, s model.Session) (*model.Winner, error) {
	top, err := c.store.Leaderboard(ctx, s.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("resolve winner: %w", err)
	}
	if len(top) == 0 {
		return nil, nil
	}
	user, err := c.store.FindUser(ctx, top[0].UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn(ctx, "winner has no user record", logger.String("user", top[0].UserID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve winner: %w", err)
	}

	eventTime := s.StartedAt
	if s.EndedAt != nil {
		eventTime = *s.EndedAt
	}
	saved, err := c.store.SaveWinner(ctx, model.Winner{
		SessionID:  s.ID,
		EventTime:  eventTime,
		UserID:     user.UserID,
		Address:    user.Address,
		ClickCount: top[0].ClickCount,
		RecordedAt: c.clock.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// ResolveSession returns round id, or the open round when id is empty,
// falling back to the most recent one.
func (c *Controller) ResolveSession(ctx context.Context, id string) (model.Session, error) {
	if id != "" {
		return c.store.GetSession(ctx, id)
	}
	s, err := c.store.ActiveSession(ctx)
	if errors.Is(err, repository.ErrNoActiveSession) {
		s, err = c.store.LatestSession(ctx)
	}
	return s, err
}

// Leaderboard ranks a round across all workers. A zero limit means the
// configured default.
func (c *Controller) Leaderboard(ctx context.Context, sessionID string, limit int) (Board, error) {
	switch {
	case limit == 0:
		limit = c.defaultLimit
	case limit < 0:
		return Board{}, repository.ErrInvalidLimit
	case limit > c.maxLimit:
		return Board{}, fmt.Errorf("%w: max %d", ErrLimitExceeded, c.maxLimit)
	}

	if sessionID == "" {
		s, err := c.ResolveSession(ctx, "")
		if errors.Is(err, repository.ErrNotFound) {
			return Board{Entries: []types.Entry{}}, nil
		}
		if err != nil {
			return Board{}, err
		}
		sessionID = s.ID
	}

	entries, err := c.store.Leaderboard(ctx, sessionID, limit)
	if err != nil {
		return Board{}, err
	}
	return Board{SessionID: sessionID, Entries: entries}, nil
}

// MaxLimit is the largest leaderboard a caller may ask for.
func (c *Controller) MaxLimit() int { return c.maxLimit }

// Winners lists recorded winners, newest first.
func (c *Controller) Winners(ctx context.Context, limit int) ([]model.Winner, error) {
	if limit == 0 {
		limit = c.maxLimit
	}
	return c.store.ListWinners(ctx, limit)
}

// EventStatus reports a round and optionally one user's standing in it.
func (c *Controller) EventStatus(ctx context.Context, sessionID, userID string) (EventStatus, error) {
	s, err := c.ResolveSession(ctx, sessionID)
	if err != nil {
		return EventStatus{}, err
	}
	status := EventStatus{Session: &s}
	if userID == "" {
		return status, nil
	}

	count, err := c.store.UserClickCount(ctx, s.ID, userID)
	if err != nil {
		return EventStatus{}, err
	}
	dq, err := c.store.IsDisqualified(ctx, s.ID, userID)
	if err != nil {
		return EventStatus{}, err
	}
	status.Player = &PlayerStatus{UserID: userID, ClickCount: count, Disqualified: dq}
	return status, nil
}

// Stats summarizes a round.
func (c *Controller) Stats(ctx context.Context, sessionID string) (repository.Stats, error) {
	s, err := c.ResolveSession(ctx, sessionID)
	if err != nil {
		return repository.Stats{}, err
	}
	return c.store.SessionStats(ctx, s.ID)
}

// Workers lists every worker slot with its last heartbeat.
func (c *Controller) Workers(ctx context.Context) ([]model.Worker, error) {
	return c.store.Workers(ctx)
}

// Signup registers a participant.
func (c *Controller) Signup(ctx context.Context, userID, password, address string) (model.User, error) {
	if strings.TrimSpace(userID) == "" || password == "" || strings.TrimSpace(address) == "" {
		return model.User{}, ErrMissingFields
	}
	u, err := c.store.CreateUser(ctx, userID, password, address)
	if err != nil {
		return model.User{}, err
	}
	c.logger.Info(ctx, "user signed up", logger.String("user", u.UserID))
	return u, nil
}

// Signin checks credentials and issues a bearer token.
func (c *Controller) Signin(ctx context.Context, userID, password string) (string, error) {
	if userID == "" || password == "" {
		return "", ErrMissingFields
	}
	u, err := c.store.Authenticate(ctx, userID, password)
	if err != nil {
		return "", err
	}
	return c.tokens.Issue(ctx, u.UserID)
}

// Profile resolves a bearer token to its user.
func (c *Controller) Profile(ctx context.Context, token string) (model.User, error) {
	userID, err := c.tokens.Resolve(ctx, token)
	if err != nil {
		return model.User{}, err
	}
	return c.store.FindUser(ctx, userID)
}
