package api

import (
	"context"
	"net/http"

	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, sessionID string, limit int) (service.Board, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

type leaderboardResponse struct {
	Success     bool          `json:"success"`
	SessionID   string        `json:"sessionId,omitempty"`
	Leaderboard []types.Entry `json:"leaderboard"`
}

// HandleGetLeaderboard handles GET /event/leaderboard?session=ID&limit=N.
// Without a session the open round, or else the latest one, is ranked.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	board, err := readBoard(r, h.deps)
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Success: true, SessionID: board.SessionID, Leaderboard: board.Entries})
}

func readBoard(r *http.Request, deps LeaderboardDependencies) (service.Board, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return service.Board{}, err
	}
	board, err := deps.Leaderboard(r.Context(), r.URL.Query().Get("session"), limit)
	if err != nil {
		return service.Board{}, err
	}
	if board.Entries == nil {
		board.Entries = []types.Entry{}
	}
	return board, nil
}
