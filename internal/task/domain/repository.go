package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Task, error)
	FindPendingForModel(ctx context.Context, db *gorm.DB, modelID snowflake.ID) (*Task, error)
	ListByModel(ctx context.Context, db *gorm.DB, modelID snowflake.ID, after *Cursor, limit int) ([]*Task, error)
	ListClaimable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Task, error)

	// Claim moves a pending task to running. It reports false when another
	// worker got there first.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, rows int, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error
	Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, runAfter, now time.Time) error
	RecoverStale(ctx context.Context, db *gorm.DB, startedBefore, now time.Time) (int64, error)
}

// Cursor positions keyset pagination over (created_at, id) descending.
type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
