package repository

import "github.com/okian/clickrace/internal/domain/model"

type clickEventRow struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"size:128;not null;index:idx_click_session_user,priority:1"`
	UserID         string `gorm:"size:128;not null;index:idx_click_session_user,priority:2"`
	WorkerID       int    `gorm:"not null"`
	ClickTimestamp int64  `gorm:"not null"`
}

func (clickEventRow) TableName() string { return "click_events" }

type disqualifiedUserRow struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"size:128;not null;uniqueIndex:idx_dq_session_user,priority:1"`
	UserID         string `gorm:"size:128;not null;uniqueIndex:idx_dq_session_user,priority:2"`
	Reason         string `gorm:"size:32;not null"`
	DisqualifiedAt int64  `gorm:"not null"`
	WorkerID       int    `gorm:"not null"`
}

func (disqualifiedUserRow) TableName() string { return "disqualified_users" }

type gameSessionRow struct {
	ID        string `gorm:"primaryKey;size:128"`
	StartedAt int64  `gorm:"not null;index"`
	EndedAt   *int64
	Status    string `gorm:"size:16;not null;index"`
}

func (gameSessionRow) TableName() string { return "game_sessions" }

func (r gameSessionRow) toModel() model.Session {
	return model.Session{ID: r.ID, StartedAt: r.StartedAt, EndedAt: r.EndedAt, Status: model.SessionStatus(r.Status)}
}

type workerInfoRow struct {
	WorkerID      int    `gorm:"primaryKey;autoIncrement:false"`
	ProcessPID    int    `gorm:"column:process_pid;not null"`
	StartedAt     int64  `gorm:"not null"`
	LastHeartbeat int64  `gorm:"not null"`
	Status        string `gorm:"size:16;not null;index"`
}

func (workerInfoRow) TableName() string { return "worker_info" }

func (r workerInfoRow) toModel() model.Worker {
	return model.Worker{
		WorkerID:      r.WorkerID,
		PID:           r.ProcessPID,
		StartedAt:     r.StartedAt,
		LastHeartbeat: r.LastHeartbeat,
		Status:        model.WorkerStatus(r.Status),
	}
}

type userRow struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	UserID       string `gorm:"size:128;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:128;not null"`
	Address      string `gorm:"size:256"`
	CreatedAt    int64  `gorm:"autoCreateTime:milli"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() model.User {
	return model.User{UserID: r.UserID, Address: r.Address, CreatedAt: r.CreatedAt}
}

type winnerRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SessionID  string `gorm:"size:128;not null;index"`
	EventTime  int64  `gorm:"not null"`
	UserID     string `gorm:"size:128;not null"`
	Address    string `gorm:"size:256"`
	ClickCount int    `gorm:"not null"`
	RecordedAt int64  `gorm:"not null;index"`
}

func (winnerRow) TableName() string { return "winners" }

func (r winnerRow) toModel() model.Winner {
	return model.Winner{
		ID:         r.ID,
		SessionID:  r.SessionID,
		EventTime:  r.EventTime,
		UserID:     r.UserID,
		Address:    r.Address,
		ClickCount: r.ClickCount,
		RecordedAt: r.RecordedAt,
	}
}

func allModels() []any {
	return []any{
		&clickEventRow{},
		&disqualifiedUserRow{},
		&gameSessionRow{},
		&workerInfoRow{},
		&userRow{},
		&winnerRow{},
	}
}
