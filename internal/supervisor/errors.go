package supervisor

import "errors"

// Sentinel kinds for supervisor errors.
var (
	ErrNotWorker = errors.New("process was not started by a supervisor")
	ErrLaunch    = errors.New("launch worker")
)
