package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/clickrace/internal/domain/model"
)

// StartSession opens round id now. Starting an existing id reopens it.
func (s *SQLStore) StartSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer func(start time.Time) { observeWrite("start_session", start, err) }(time.Now())

	row := gameSessionRow{
		ID:        id,
		StartedAt: s.clock.Now().UnixMilli(),
		Status:    string(model.SessionActive),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"started_at", "ended_at", "status"}),
		}).
		Create(&row).Error
	if err != nil {
		return model.Session{}, fmt.Errorf("start session: %w", err)
	}
	return row.toModel(), nil
}

// EndSession closes round id. Ending a round twice returns ErrSessionEnded.
func (s *SQLStore) EndSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer func(start time.Time) { observeWrite("end_session", start, err) }(time.Now())

	now := s.clock.Now().UnixMilli()
	res := s.db.WithContext(ctx).Model(&gameSessionRow{}).
		Where("id = ? AND status = ?", id, string(model.SessionActive)).
		Updates(map[string]any{"ended_at": now, "status": string(model.SessionEnded)})
	if res.Error != nil {
		return model.Session{}, fmt.Errorf("end session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetSession(ctx, id); err != nil {
			return model.Session{}, err
		}
		return model.Session{}, ErrSessionEnded
	}
	return s.GetSession(ctx, id)
}

// GetSession loads round id.
func (s *SQLStore) GetSession(ctx context.Context, id string) (sess model.Session, err error) {
	defer func(start time.Time) { observeQuery("get_session", start, err) }(time.Now())

	var row gameSessionRow
	if err = s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.toModel(), nil
}

// ActiveSession returns the newest round that has not ended.
func (s *SQLStore) ActiveSession(ctx context.Context) (sess model.Session, err error) {
	defer func(start time.Time) { observeQuery("active_session", start, err) }(time.Now())

	var row gameSessionRow
	err = s.db.WithContext(ctx).
		Where("status = ?", string(model.SessionActive)).
		Order("started_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Session{}, ErrNoActiveSession
		}
		return model.Session{}, fmt.Errorf("active session: %w", err)
	}
	return row.toModel(), nil
}

// LatestSession returns the newest round in any state.
func (s *SQLStore) LatestSession(ctx context.Context) (sess model.Session, err error) {
	defer func(start time.Time) { observeQuery("latest_session", start, err) }(time.Now())

	var row gameSessionRow
	if err = s.db.WithContext(ctx).Order("started_at DESC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("latest session: %w", err)
	}
	return row.toModel(), nil
}
