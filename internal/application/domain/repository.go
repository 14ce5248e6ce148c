package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, app *Application) error
	Update(ctx context.Context, db *gorm.DB, app *Application) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Application, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Application, error)
	LawnExists(ctx context.Context, db *gorm.DB, lawnID snowflake.ID) (bool, error)

	// ModelLawnID returns the lawn owning the model, or zero when the model
	// does not exist.
	ModelLawnID(ctx context.Context, db *gorm.DB, modelID snowflake.ID) (snowflake.ID, error)
}

type ListFilter struct {
	LawnID         *snowflake.ID
	TiedGDDModelID *snowflake.ID
}
