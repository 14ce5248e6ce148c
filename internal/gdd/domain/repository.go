package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertModel(ctx context.Context, db *gorm.DB, model *Model) error
	UpdateModel(ctx context.Context, db *gorm.DB, model *Model) error
	DeleteModel(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindModel(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Model, error)
	ListModels(ctx context.Context, db *gorm.DB, lawnID *snowflake.ID) ([]Model, error)
	ListModelIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
	LawnExists(ctx context.Context, db *gorm.DB, lawnID snowflake.ID) (bool, error)
	LocationIDForModel(ctx context.Context, db *gorm.DB, id snowflake.ID) (snowflake.ID, error)
	DetachApplications(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertReset(ctx context.Context, db *gorm.DB, reset *Reset) error
	ListResets(ctx context.Context, db *gorm.DB, modelID snowflake.ID) ([]Reset, error)
	DeleteResetAt(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) error
	DeleteResetsAfter(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) error
	DeleteResets(ctx context.Context, db *gorm.DB, modelID snowflake.ID) error
	MaxRunNumber(ctx context.Context, db *gorm.DB, modelID snowflake.ID) (int, error)
	MoveInitialReset(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) error

	UpsertParameters(ctx context.Context, db *gorm.DB, entry *ParameterHistory) error
	FindEffectiveParameters(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) (*ParameterHistory, error)
	ListParameterHistory(ctx context.Context, db *gorm.DB, modelID snowflake.ID) ([]ParameterHistory, error)
	MoveParameterHistory(ctx context.Context, db *gorm.DB, modelID snowflake.ID, from, to time.Time) error
	DeleteParameterHistory(ctx context.Context, db *gorm.DB, modelID snowflake.ID) error

	InsertValues(ctx context.Context, db *gorm.DB, values []Value, batchSize int) error
	DeleteValues(ctx context.Context, db *gorm.DB, modelID snowflake.ID) error
	DeleteValuesFrom(ctx context.Context, db *gorm.DB, modelID snowflake.ID, from time.Time) error
	ListValues(ctx context.Context, db *gorm.DB, filter ValueFilter) ([]Value, error)
}

type ValueFilter struct {
	ModelID snowflake.ID
	Run     *int
	From    *time.Time
	To      *time.Time
}
