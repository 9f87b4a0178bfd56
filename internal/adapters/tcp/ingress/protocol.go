package ingress

import (
	"github.com/okian/clickrace/internal/domain/model"
)

// Error codes for payloads that never reach the game.
const (
	CodeInvalidFormat  = "INVALID_FORMAT"
	CodeInvalidRequest = "INVALID_REQUEST"
)

const clickType = "CLICK"

// request is the wire form of a click.
type request struct {
	Type      string   `json:"type"`
	UserID    string   `json:"userId"`
	SessionID string   `json:"sessionId"`
	Timestamp *float64 `json:"timestamp"`
}

func (r request) valid() bool {
	return r.Type == clickType && r.UserID != ""
}

// response is the wire form of a decision or a payload error.
type response struct {
	Success   *bool  `json:"success,omitempty"`
	Count     *int   `json:"count,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

func decisionResponse(d model.Decision) response { //nolint:gocritic // hugeParam: Decision is a value type
	ok := d.Accepted
	ts := d.Timestamp
	r := response{Success: &ok, Timestamp: &ts}
	if d.Accepted {
		count := d.Count
		r.Count = &count
	} else {
		r.Error = string(d.Reason)
	}
	return r
}

func errorResponse(code string) response {
	return response{Error: code}
}
