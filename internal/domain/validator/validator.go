// Package validator implements the per-user anti-cheat state machine.
//
// Each user is ACTIVE until a rate or inactivity violation moves them to
// DISQUALIFIED, which is terminal for the lifetime of the validator.
package validator

import (
	"sort"
	"time"

	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/types"
)

// Default thresholds.
const (
	DefaultRateWindow        = time.Second
	DefaultMaxClicksInWindow = 4
	DefaultRetention         = 5 * time.Second
	DefaultInactivityTimeout = 10 * time.Second
)

type userState struct {
	history      []int64 // accepted click timestamps inside the retention window, oldest first
	lastClickAt  int64
	accepted     int
	firstSeq     uint64
	disqualified bool
	reason       model.Reason
}

// Validator decides per click whether it is legitimate. It is not safe for
// concurrent use; callers serialize access.
type Validator struct {
	rateWindow int64
	maxClicks  int
	retention  int64
	inactivity int64

	users map[string]*userState
	seq   uint64
}

// New creates a Validator with the default thresholds.
func New(opts ...Option) *Validator {
	v := &Validator{
		rateWindow: DefaultRateWindow.Milliseconds(),
		maxClicks:  DefaultMaxClicksInWindow,
		retention:  DefaultRetention.Milliseconds(),
		inactivity: DefaultInactivityTimeout.Milliseconds(),
		users:      make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs one click at ts (epoch ms) through the state machine.
func (v *Validator) Validate(userID string, ts int64) model.Decision {
	u := v.users[userID]

	if u != nil && u.disqualified {
		return model.Reject(model.ReasonDisqualified, ts)
	}

	if u != nil && ts-u.lastClickAt > v.inactivity {
		return v.disqualify(u, model.ReasonInactiveTimeout, ts)
	}

	if u != nil {
		recent := 0
		for _, t := range u.history {
			if t > ts-v.rateWindow {
				recent++
			}
		}
		if recent >= v.maxClicks {
			return v.disqualify(u, model.ReasonRateExceeded, ts)
		}
	}

	if u == nil {
		v.seq++
		u = &userState{firstSeq: v.seq}
		v.users[userID] = u
	}

	u.history = append(u.history, ts)
	u.history = prune(u.history, ts-v.retention)
	u.lastClickAt = ts
	u.accepted++
	return model.Accept(u.accepted, ts)
}

func (v *Validator) disqualify(u *userState, reason model.Reason, ts int64) model.Decision {
	u.disqualified = true
	u.reason = reason
	d := model.Reject(reason, ts)
	d.Count = u.accepted
	d.JustDisqualified = true
	return d
}

// prune keeps entries strictly newer than cutoff, reusing the backing array.
func prune(history []int64, cutoff int64) []int64 {
	kept := history[:0]
	for _, t := range history {
		if t > cutoff {
			kept = append(kept, t)
		}
	}
	return kept
}

// IsDisqualified reports whether the user has been disqualified and why.
func (v *Validator) IsDisqualified(userID string) (model.Reason, bool) {
	u := v.users[userID]
	if u == nil || !u.disqualified {
		return model.ReasonNone, false
	}
	return u.reason, true
}

// Leaderboard ranks non-disqualified users by accepted clicks, highest first.
// Equal counts are ordered by who was accepted first.
func (v *Validator) Leaderboard() []types.Entry {
	type row struct {
		entry types.Entry
		seq   uint64
	}
	rows := make([]row, 0, len(v.users))
	for id, u := range v.users {
		if u.disqualified {
			continue
		}
		rows = append(rows, row{entry: types.Entry{UserID: id, ClickCount: u.accepted}, seq: u.firstSeq})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].entry.ClickCount != rows[j].entry.ClickCount {
			return rows[i].entry.ClickCount > rows[j].entry.ClickCount
		}
		return rows[i].seq < rows[j].seq
	})

	out := make([]types.Entry, len(rows))
	for i, r := range rows {
		out[i] = r.entry
	}
	return out
}

// Reset forgets all users, e.g. when a new round starts.
func (v *Validator) Reset() {
	v.users = make(map[string]*userState)
	v.seq = 0
}
