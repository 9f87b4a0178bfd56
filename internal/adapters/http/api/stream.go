package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/pkg/logger"
)

const streamWriteTimeout = 5 * time.Second

// StreamHandler pushes leaderboard snapshots over a websocket.
type StreamHandler struct {
	deps     LeaderboardDependencies
	interval time.Duration
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a stream handler that pushes every interval.
func NewStreamHandler(deps LeaderboardDependencies, interval time.Duration, clock clockwork.Clock, l logger.Logger) *StreamHandler {
	return &StreamHandler{
		deps:     deps,
		interval: interval,
		clock:    clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: l,
	}
}

// HandleStream handles GET /event/leaderboard/stream?session=ID&limit=N.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard_stream"
	// Validate before upgrading so bad requests still get a JSON error.
	if _, err := queryInt(r, "limit"); err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// Drain client frames so close and ping are handled.
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		board, err := readBoard(r.WithContext(ctx), h.deps)
		if err != nil {
			status, code := statusFor(err)
			_ = conn.WriteJSON(errorResponse{Code: code, Message: http.StatusText(status)})
			return
		}
		_ = conn.SetWriteDeadline(h.clock.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(leaderboardResponse{Success: true, SessionID: board.SessionID, Leaderboard: board.Entries}); err != nil {
			h.logger.Debug(ctx, "leaderboard stream closed", logger.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
