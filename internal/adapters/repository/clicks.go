package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/types"
	"github.com/okian/clickrace/pkg/metrics"
)

func observeWrite(op string, start time.Time, err error) {
	metrics.RecordStoreWrite(op, time.Since(start))
	if err != nil {
		metrics.RecordStoreError(op)
	}
}

func observeQuery(op string, start time.Time, err error) {
	metrics.RecordStoreQuery(op, time.Since(start))
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNoActiveSession) {
		metrics.RecordStoreError(op)
	}
}

// RecordClick appends one accepted click.
func (s *SQLStore) RecordClick(ctx context.Context, c model.Click) (err error) {
	defer func(start time.Time) { observeWrite("record_click", start, err) }(time.Now())

	row := clickEventRow{
		SessionID:      c.SessionID,
		UserID:         c.UserID,
		WorkerID:       c.WorkerID,
		ClickTimestamp: c.Timestamp,
	}
	if err = s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	return nil
}

// RecordDisqualification inserts the disqualification unless one exists for
// the pair already; the first writer wins.
func (s *SQLStore) RecordDisqualification(ctx context.Context, d model.Disqualification) (inserted bool, err error) {
	defer func(start time.Time) { observeWrite("record_disqualification", start, err) }(time.Now())

	row := disqualifiedUserRow{
		SessionID:      d.SessionID,
		UserID:         d.UserID,
		Reason:         string(d.Reason),
		DisqualifiedAt: d.DisqualifiedAt,
		WorkerID:       d.WorkerID,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("record disqualification: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// IsDisqualified reports whether a disqualification row exists for the pair.
func (s *SQLStore) IsDisqualified(ctx context.Context, sessionID, userID string) (dq bool, err error) {
	defer func(start time.Time) { observeQuery("is_disqualified", start, err) }(time.Now())

	var n int64
	err = s.db.WithContext(ctx).Model(&disqualifiedUserRow{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("is disqualified: %w", err)
	}
	return n > 0, nil
}

type leaderboardRow struct {
	UserID     string
	ClickCount int
}

// Leaderboard counts clicks per user for the session, drops every user with
// a disqualification row, and orders by count, then by who reached it first.
func (s *SQLStore) Leaderboard(ctx context.Context, sessionID string, limit int) (entries []types.Entry, err error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	defer func(start time.Time) { observeQuery("leaderboard", start, err) }(time.Now())

	var rows []leaderboardRow
	err = s.db.WithContext(ctx).
		Table("click_events AS c").
		Select("c.user_id AS user_id, COUNT(*) AS click_count").
		Joins("LEFT JOIN disqualified_users AS d ON d.session_id = c.session_id AND d.user_id = c.user_id").
		Where("c.session_id = ? AND d.user_id IS NULL", sessionID).
		Group("c.user_id").
		Order("click_count DESC, MAX(c.click_timestamp) ASC, MAX(c.id) ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries = make([]types.Entry, len(rows))
	for i, r := range rows {
		entries[i] = types.Entry{UserID: r.UserID, ClickCount: r.ClickCount}
	}
	return entries, nil
}

// UserClickCount returns the accepted clicks of one user in the session.
func (s *SQLStore) UserClickCount(ctx context.Context, sessionID, userID string) (count int, err error) {
	defer func(start time.Time) { observeQuery("user_click_count", start, err) }(time.Now())

	var n int64
	err = s.db.WithContext(ctx).Model(&clickEventRow{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("user click count: %w", err)
	}
	return int(n), nil
}

// SessionStats summarizes clicks and disqualifications for the session.
func (s *SQLStore) SessionStats(ctx context.Context, sessionID string) (st Stats, err error) {
	defer func(start time.Time) { observeQuery("session_stats", start, err) }(time.Now())

	st.SessionID = sessionID
	var agg struct {
		TotalClicks  int64
		Participants int64
		Workers      int64
	}
	err = s.db.WithContext(ctx).Model(&clickEventRow{}).
		Select("COUNT(*) AS total_clicks, COUNT(DISTINCT user_id) AS participants, COUNT(DISTINCT worker_id) AS workers").
		Where("session_id = ?", sessionID).
		Scan(&agg).Error
	if err != nil {
		return st, fmt.Errorf("session stats: %w", err)
	}
	st.TotalClicks, st.Participants, st.Workers = agg.TotalClicks, agg.Participants, agg.Workers

	err = s.db.WithContext(ctx).Model(&disqualifiedUserRow{}).
		Where("session_id = ?", sessionID).
		Count(&st.Disqualified).Error
	if err != nil {
		return st, fmt.Errorf("session stats: %w", err)
	}
	return st, nil
}
