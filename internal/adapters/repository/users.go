package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/clickrace/internal/domain/model"
)

// CreateUser registers a participant with a bcrypt-hashed password.
func (s *SQLStore) CreateUser(ctx context.Context, userID, password, address string) (u model.User, err error) {
	defer func(start time.Time) {
		if errors.Is(err, ErrUserExists) {
			observeWrite("create_user", start, nil)
			return
		}
		observeWrite("create_user", start, err)
	}(time.Now())

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	row := userRow{
		UserID:       userID,
		PasswordHash: string(hash),
		Address:      address,
		CreatedAt:    s.clock.Now().UnixMilli(),
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return model.User{}, fmt.Errorf("create user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.User{}, ErrUserExists
	}
	return row.toModel(), nil
}

// FindUser loads a participant by id.
func (s *SQLStore) FindUser(ctx context.Context, userID string) (u model.User, err error) {
	defer func(start time.Time) { observeQuery("find_user", start, err) }(time.Now())

	row, err := s.findUserRow(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return row.toModel(), nil
}

// Authenticate checks a password against the stored hash.
func (s *SQLStore) Authenticate(ctx context.Context, userID, password string) (model.User, error) {
	row, err := s.findUserRow(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return row.toModel(), nil
}

func (s *SQLStore) findUserRow(ctx context.Context, userID string) (userRow, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return userRow{}, ErrNotFound
		}
		return userRow{}, fmt.Errorf("find user: %w", err)
	}
	return row, nil
}

// SaveWinner persists the result of a finished round.
func (s *SQLStore) SaveWinner(ctx context.Context, w model.Winner) (saved model.Winner, err error) {
	defer func(start time.Time) { observeWrite("save_winner", start, err) }(time.Now())

	row := winnerRow{
		SessionID:  w.SessionID,
		EventTime:  w.EventTime,
		UserID:     w.UserID,
		Address:    w.Address,
		ClickCount: w.ClickCount,
		RecordedAt: w.RecordedAt,
	}
	if row.RecordedAt == 0 {
		row.RecordedAt = s.clock.Now().UnixMilli()
	}
	if err = s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Winner{}, fmt.Errorf("save winner: %w", err)
	}
	return row.toModel(), nil
}

// ListWinners returns past winners, newest first.
func (s *SQLStore) ListWinners(ctx context.Context, limit int) (winners []model.Winner, err error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	defer func(start time.Time) { observeQuery("list_winners", start, err) }(time.Now())

	var rows []winnerRow
	if err = s.db.WithContext(ctx).Order("recorded_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	winners = make([]model.Winner, len(rows))
	for i, r := range rows {
		winners[i] = r.toModel()
	}
	return winners, nil
}
