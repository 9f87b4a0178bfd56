// Package ipc is the supervisory channel between the primary and its worker
// processes: JSON documents, one per line, over inherited pipes.
package ipc

import (
	"github.com/okian/clickrace/internal/domain/types"
)

// Type identifies a message.
type Type string

// Worker -> supervisor.
const (
	TypeHeartbeat   Type = "HEARTBEAT"
	TypeLocalWinner Type = "LOCAL_WINNER"
)

// Supervisor -> worker.
const (
	TypeEventStart Type = "EVENT_START"
	TypeEventEnd   Type = "EVENT_END"
)

// Stats are the local counters a worker reports with each heartbeat.
type Stats struct {
	Accepted    int64 `json:"accepted"`
	Rejected    int64 `json:"rejected"`
	Connections int   `json:"connections"`
	QueueDepth  int   `json:"queueDepth"`
}

// Message is one document on the channel. Fields not used by a type are omitted.
type Message struct {
	Type      Type         `json:"type"`
	WorkerID  int          `json:"workerId,omitempty"`
	PID       int          `json:"pid,omitempty"`
	Timestamp int64        `json:"timestamp"`
	SessionID string       `json:"sessionId,omitempty"`
	StartedAt int64        `json:"startedAt,omitempty"`
	Stats     *Stats       `json:"stats,omitempty"`
	Winner    *types.Entry `json:"winner,omitempty"`
}

// Heartbeat builds a liveness message.
func Heartbeat(workerID, pid int, now int64, stats Stats) Message {
	return Message{Type: TypeHeartbeat, WorkerID: workerID, PID: pid, Timestamp: now, Stats: &stats}
}

// LocalWinner builds the message a worker sends when its round ends.
func LocalWinner(workerID int, sessionID string, now int64, winner *types.Entry) Message {
	return Message{Type: TypeLocalWinner, WorkerID: workerID, SessionID: sessionID, Timestamp: now, Winner: winner}
}

// EventStart tells a worker to open round sessionID, which began at startedAt.
func EventStart(sessionID string, startedAt, now int64) Message {
	return Message{Type: TypeEventStart, SessionID: sessionID, StartedAt: startedAt, Timestamp: now}
}

// EventEnd tells a worker to close round sessionID.
func EventEnd(sessionID string, now int64) Message {
	return Message{Type: TypeEventEnd, SessionID: sessionID, Timestamp: now}
}
