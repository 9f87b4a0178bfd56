package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidLimit       = errors.New("invalid leaderboard limit")
	ErrNoActiveSession    = errors.New("no active session")
	ErrSessionEnded       = errors.New("session already ended")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnsupportedDriver  = errors.New("unsupported database driver")
)
