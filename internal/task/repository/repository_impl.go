package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, kind, gdd_model_id, reason, status, attempts, rows_written, last_error,
	metadata, run_after, started_at, finished_at, created_at, updated_at`

type repo struct{}

func Provide() taskdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *taskdomain.Task) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tasks (id, kind, gdd_model_id, reason, status, attempts, rows_written, last_error,
		   metadata, run_after, started_at, finished_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Kind,
		t.GDDModelID,
		t.Reason,
		t.Status,
		t.Attempts,
		t.RowsWritten,
		t.LastError,
		t.Metadata,
		t.RunAfter,
		t.StartedAt,
		t.FinishedAt,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*taskdomain.Task, error) {
	var task taskdomain.Task
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM tasks WHERE id = ?`,
		id,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

func (r *repo) FindPendingForModel(ctx context.Context, db *gorm.DB, modelID snowflake.ID) (*taskdomain.Task, error) {
	var task taskdomain.Task
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM tasks
		 WHERE gdd_model_id = ? AND kind = ? AND status = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		modelID,
		taskdomain.KindGDDRecalculate,
		taskdomain.StatusPending,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

func (r *repo) ListByModel(ctx context.Context, db *gorm.DB, modelID snowflake.ID, after *taskdomain.Cursor, limit int) ([]*taskdomain.Task, error) {
	query := `SELECT ` + selectColumns + ` FROM tasks WHERE gdd_model_id = ?`
	args := []any{modelID}
	if after != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var tasks []*taskdomain.Task
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) ListClaimable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]taskdomain.Task, error) {
	var tasks []taskdomain.Task
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM tasks
		 WHERE status = ? AND run_after <= ?
		 ORDER BY run_after ASC, id ASC
		 LIMIT ?`,
		taskdomain.StatusPending,
		now,
		limit,
	).Scan(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET status = ?, attempts = attempts + 1, started_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		taskdomain.StatusRunning,
		now,
		now,
		id,
		taskdomain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, rows int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET status = ?, rows_written = ?, last_error = NULL, finished_at = ?, updated_at = ?
		 WHERE id = ?`,
		taskdomain.StatusSucceeded,
		rows,
		now,
		now,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET status = ?, last_error = ?, finished_at = ?, updated_at = ?
		 WHERE id = ?`,
		taskdomain.StatusFailed,
		reason,
		now,
		now,
		id,
	).Error
}

func (r *repo) Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, runAfter, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET status = ?, last_error = ?, run_after = ?, started_at = NULL, updated_at = ?
		 WHERE id = ?`,
		taskdomain.StatusPending,
		reason,
		runAfter,
		now,
		id,
	).Error
}

func (r *repo) RecoverStale(ctx context.Context, db *gorm.DB, startedBefore, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tasks
		 SET status = ?, started_at = NULL, run_after = ?, updated_at = ?
		 WHERE status = ? AND started_at < ?`,
		taskdomain.StatusPending,
		now,
		now,
		taskdomain.StatusRunning,
		startedBefore,
	)
	return result.RowsAffected, result.Error
}
