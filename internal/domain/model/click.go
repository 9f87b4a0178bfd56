// Package model contains domain models passed between layers.
package model

// Reason is the machine-readable outcome of a rejected click.
type Reason string

// Rejection reasons surfaced verbatim to clients.
const (
	ReasonNone            Reason = ""
	ReasonNotRegistered   Reason = "NOT_REGISTERED"
	ReasonEventNotActive  Reason = "EVENT_NOT_ACTIVE"
	ReasonRateExceeded    Reason = "RATE_EXCEEDED"
	ReasonInactiveTimeout Reason = "INACTIVE_TIMEOUT"
	ReasonDisqualified    Reason = "DISQUALIFIED"
)

// Disqualifying reports whether the reason permanently removes a user from the round.
func (r Reason) Disqualifying() bool {
	return r == ReasonRateExceeded || r == ReasonInactiveTimeout
}

// Decision is the result of validating one click.
type Decision struct {
	Accepted bool
	Reason   Reason
	// Count is the user's accepted click total after this click.
	Count int
	// Timestamp echoes the click time in epoch milliseconds.
	Timestamp int64
	// JustDisqualified is true only on the click that caused the disqualification.
	JustDisqualified bool
	// SessionID is the round the click was judged in; empty when no round was open.
	SessionID string
}

// Accept builds an accepted decision.
func Accept(count int, ts int64) Decision {
	return Decision{Accepted: true, Count: count, Timestamp: ts}
}

// Reject builds a rejected decision.
func Reject(reason Reason, ts int64) Decision {
	return Decision{Reason: reason, Timestamp: ts}
}

// Click is one accepted click as persisted by the worker that accepted it.
type Click struct {
	SessionID string
	UserID    string
	WorkerID  int
	Timestamp int64
}

// Disqualification records the first detection of a cheating user in a session.
type Disqualification struct {
	SessionID      string
	UserID         string
	Reason         Reason
	WorkerID       int
	DisqualifiedAt int64
}
