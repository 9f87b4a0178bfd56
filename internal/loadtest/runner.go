package loadtest

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/clickrace/pkg/logger"
)

// Run signs players up, plays one round against the deployment and verifies
// the resulting leaderboard and winner.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg = cfg.withDefaults()
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadtest")

	log.Info(ctx, "starting click load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("tcpAddr", cfg.TCPAddr),
		logger.Int("players", cfg.Players),
		logger.Int("cheaters", cfg.Cheaters),
		logger.Int("clicksPerUser", cfg.ClicksPerUser),
		logger.Duration("clickInterval", cfg.ClickInterval))

	api := newAPIClient(cfg.BaseURL, cfg.Timeout)
	if err := api.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	players := newPlayers(cfg.Players, cfg.Cheaters)
	for _, p := range players {
		if err := api.signup(ctx, p); err != nil {
			return stats, fmt.Errorf("signup %s: %w", p.UserID, err)
		}
	}

	sessionID, err := api.startEvent(ctx, cfg.SessionID)
	if err != nil {
		return stats, fmt.Errorf("start round: %w", err)
	}
	log.Info(ctx, "round started", logger.String("session", sessionID))

	results := clickAll(ctx, cfg, sessionID, players)
	tally(results, stats)

	// Durable writes are asynchronous on the workers.
	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(cfg.Settle):
	}

	limit := min(len(players), leaderboardMaxLimit)
	board, err := api.leaderboard(ctx, sessionID, limit)
	if err != nil {
		return stats, fmt.Errorf("read leaderboard: %w", err)
	}
	winner, err := api.endEvent(ctx)
	if err != nil {
		return stats, fmt.Errorf("end round: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	report(ctx, log, stats, board, winner)

	if err := verify(results, board, limit, winner); err != nil {
		return stats, err
	}
	log.Info(ctx, "verification passed")
	return stats, nil
}

func report(ctx context.Context, log logger.Logger, stats *Stats, board []Entry, winner *Winner) {
	log.Info(ctx, "final statistics",
		logger.Int("clicksSent", stats.ClicksSent),
		logger.Int("clicksAccepted", stats.ClicksAccepted),
		logger.Int("clicksRejected", stats.ClicksRejected),
		logger.Int("disqualified", stats.Disqualified),
		logger.Int("failedPlayers", stats.Failed),
		logger.Int("ranked", len(board)),
		logger.Duration("duration", stats.Duration))
	if winner != nil {
		log.Info(ctx, "winner", logger.String("user", winner.UserID), logger.Int("clicks", winner.ClickCount))
	}
}
