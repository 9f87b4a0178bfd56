package service

import "errors"

// Sentinel kinds for control errors.
var (
	ErrMissingFields = errors.New("missing fields")
	ErrLimitExceeded = errors.New("leaderboard limit exceeded")
)
