package model

// SessionStatus is the lifecycle state of a competition round.
type SessionStatus string

// Session states.
const (
	SessionActive SessionStatus = "ACTIVE"
	SessionEnded  SessionStatus = "ENDED"
)

// Session is one competition round.
type Session struct {
	ID        string        `json:"id"`
	StartedAt int64         `json:"startedAt"`
	EndedAt   *int64        `json:"endedAt,omitempty"`
	Status    SessionStatus `json:"status"`
}

// WorkerStatus is the liveness state recorded for a worker slot.
type WorkerStatus string

// Worker states.
const (
	WorkerActive WorkerStatus = "ACTIVE"
	WorkerExited WorkerStatus = "EXITED"
)

// Worker is the durable liveness record of one worker slot.
type Worker struct {
	WorkerID      int          `json:"workerId"`
	PID           int          `json:"pid"`
	StartedAt     int64        `json:"startedAt"`
	LastHeartbeat int64        `json:"lastHeartbeat"`
	Status        WorkerStatus `json:"status"`
}

// User is a registered participant.
type User struct {
	UserID    string `json:"userId"`
	Address   string `json:"address"`
	CreatedAt int64  `json:"createdAt"`
}

// Winner is the persisted result of a finished round.
type Winner struct {
	ID         uint   `json:"id"`
	SessionID  string `json:"sessionId"`
	EventTime  int64  `json:"eventTime"`
	UserID     string `json:"userId"`
	Address    string `json:"address"`
	ClickCount int    `json:"clickCount"`
	RecordedAt int64  `json:"recordedAt"`
}
