package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ListRange returns records with from <= date < to, ascending. A nil
	// bound is open.
	ListRange(ctx context.Context, db *gorm.DB, locationID snowflake.ID, from, to *time.Time) ([]Record, error)
	Count(ctx context.Context, db *gorm.DB, locationID snowflake.ID, from *time.Time) (int64, error)
	Upsert(ctx context.Context, db *gorm.DB, records []Record) error
	LocationExists(ctx context.Context, db *gorm.DB, locationID snowflake.ID) (bool, error)
	ModelIDsAtLocation(ctx context.Context, db *gorm.DB, locationID snowflake.ID) ([]snowflake.ID, error)
}
