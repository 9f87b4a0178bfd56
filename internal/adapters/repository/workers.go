package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/okian/clickrace/internal/domain/model"
)

// UpsertHeartbeat records liveness for the worker slot. started_at is only
// written on the first heartbeat of the slot.
func (s *SQLStore) UpsertHeartbeat(ctx context.Context, workerID, pid int, now int64) (err error) {
	defer func(start time.Time) { observeWrite("upsert_heartbeat", start, err) }(time.Now())

	row := workerInfoRow{
		WorkerID:      workerID,
		ProcessPID:    pid,
		StartedAt:     now,
		LastHeartbeat: now,
		Status:        string(model.WorkerActive),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "worker_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"process_pid", "last_heartbeat", "status"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

// MarkWorkerExited flags the slot as no longer running.
func (s *SQLStore) MarkWorkerExited(ctx context.Context, workerID int) (err error) {
	defer func(start time.Time) { observeWrite("mark_worker_exited", start, err) }(time.Now())

	err = s.db.WithContext(ctx).Model(&workerInfoRow{}).
		Where("worker_id = ?", workerID).
		Update("status", string(model.WorkerExited)).Error
	if err != nil {
		return fmt.Errorf("mark worker exited: %w", err)
	}
	return nil
}

// ActiveWorkers lists slots whose status is ACTIVE.
func (s *SQLStore) ActiveWorkers(ctx context.Context) (workers []model.Worker, err error) {
	defer func(start time.Time) { observeQuery("active_workers", start, err) }(time.Now())
	return s.listWorkers(ctx, string(model.WorkerActive))
}

// Workers lists every slot that ever reported.
func (s *SQLStore) Workers(ctx context.Context) (workers []model.Worker, err error) {
	defer func(start time.Time) { observeQuery("workers", start, err) }(time.Now())
	return s.listWorkers(ctx, "")
}

func (s *SQLStore) listWorkers(ctx context.Context, status string) ([]model.Worker, error) {
	q := s.db.WithContext(ctx).Order("worker_id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []workerInfoRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	out := make([]model.Worker, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
