// Package window tracks whether a competition round is accepting clicks.
package window

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDuration is the length of a round when none is configured.
const DefaultDuration = 60 * time.Second

// Status of the current round.
type Status string

// Window states.
const (
	StatusIdle   Status = "IDLE"
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
)

// State is a point-in-time view of the window.
type State struct {
	SessionID string `json:"sessionId"`
	StartedAt int64  `json:"startedAt"`
	EndsAt    int64  `json:"endsAt,omitempty"`
	Status    Status `json:"status"`
}

// EventWindow is the current round of one process. It is not safe for
// concurrent use; callers serialize access.
type EventWindow struct {
	clock    clockwork.Clock
	duration time.Duration

	sessionID string
	started   bool
	ended     bool
	startedAt int64
	endsAt    int64 // 0 when the round has no fixed duration
}

// New creates an idle window.
func New(opts ...Option) *EventWindow {
	w := &EventWindow{
		clock:    clockwork.NewRealClock(),
		duration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start opens a new round beginning now.
func (w *EventWindow) Start(sessionID string) {
	w.StartAt(sessionID, w.clock.Now().UnixMilli())
}

// StartAt opens a round that began at startedAt, e.g. one adopted from the store.
func (w *EventWindow) StartAt(sessionID string, startedAt int64) {
	w.sessionID = sessionID
	w.started = true
	w.ended = false
	w.startedAt = startedAt
	w.endsAt = 0
	if w.duration > 0 {
		w.endsAt = startedAt + w.duration.Milliseconds()
	}
}

// End closes the round.
func (w *EventWindow) End() {
	if w.started {
		w.ended = true
	}
}

// IsActive reports whether a click at ts falls inside the open round.
func (w *EventWindow) IsActive(ts int64) bool {
	if !w.started || w.ended {
		return false
	}
	if ts < w.startedAt {
		return false
	}
	return w.endsAt == 0 || ts <= w.endsAt
}

// SessionID returns the id of the current or last round.
func (w *EventWindow) SessionID() string {
	return w.sessionID
}

// Snapshot returns the window state as of the clock's now.
func (w *EventWindow) Snapshot() State {
	s := State{SessionID: w.sessionID, StartedAt: w.startedAt, EndsAt: w.endsAt}
	switch {
	case !w.started:
		s.Status = StatusIdle
	case w.ended, w.endsAt != 0 && w.clock.Now().UnixMilli() > w.endsAt:
		s.Status = StatusEnded
	default:
		s.Status = StatusActive
	}
	return s
}
