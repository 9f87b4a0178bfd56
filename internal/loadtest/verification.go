package loadtest

import (
	"errors"
	"fmt"
)

// ErrMismatch marks a leaderboard that disagrees with what players observed.
var ErrMismatch = errors.New("leaderboard mismatch")

// verify checks the leaderboard and winner against the players' own view:
// disqualified players never rank, counts equal accepted clicks, rows are
// ordered by count and the winner is the top row.
func verify(results []Result, board []Entry, limit int, winner *Winner) error {
	byUser := make(map[string]Result, len(results))
	for _, r := range results {
		byUser[r.Player.UserID] = r
	}

	var errs []error
	listed := make(map[string]bool, len(board))
	for i, e := range board {
		listed[e.UserID] = true
		if i > 0 && e.ClickCount > board[i-1].ClickCount {
			errs = append(errs, fmt.Errorf("%w: row %d (%d clicks) ranks below a smaller count", ErrMismatch, i, e.ClickCount))
		}
		r, ok := byUser[e.UserID]
		if !ok {
			continue
		}
		if r.Disqualified {
			errs = append(errs, fmt.Errorf("%w: disqualified %s is ranked", ErrMismatch, e.UserID))
		}
		if r.Accepted != e.ClickCount {
			errs = append(errs, fmt.Errorf("%w: %s has %d clicks, %d were accepted", ErrMismatch, e.UserID, e.ClickCount, r.Accepted))
		}
	}

	if len(board) < limit {
		for _, r := range results {
			if r.Err == nil && !r.Disqualified && r.Accepted > 0 && !listed[r.Player.UserID] {
				errs = append(errs, fmt.Errorf("%w: %s with %d accepted clicks is missing", ErrMismatch, r.Player.UserID, r.Accepted))
			}
		}
	}

	switch {
	case len(board) == 0 && winner != nil:
		errs = append(errs, fmt.Errorf("%w: winner %s without ranked players", ErrMismatch, winner.UserID))
	case len(board) > 0 && winner == nil:
		errs = append(errs, fmt.Errorf("%w: no winner for a ranked round", ErrMismatch))
	case len(board) > 0 && (winner.UserID != board[0].UserID || winner.ClickCount != board[0].ClickCount):
		errs = append(errs, fmt.Errorf("%w: winner %s/%d is not the top row %s/%d",
			ErrMismatch, winner.UserID, winner.ClickCount, board[0].UserID, board[0].ClickCount))
	}
	return errors.Join(errs...)
}

// tally folds player results into run statistics.
func tally(results []Result, stats *Stats) {
	for _, r := range results {
		stats.ClicksSent += r.Sent
		stats.ClicksAccepted += r.Accepted
		stats.ClicksRejected += r.Sent - r.Accepted
		if r.Disqualified {
			stats.Disqualified++
		}
		if r.Err != nil {
			stats.Failed++
		}
	}
}
