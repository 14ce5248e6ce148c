package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lawn *Lawn) error
	Update(ctx context.Context, db *gorm.DB, lawn *Lawn) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Lawn, error)
	List(ctx context.Context, db *gorm.DB, locationID *snowflake.ID) ([]Lawn, error)
	LocationExists(ctx context.Context, db *gorm.DB, locationID snowflake.ID) (bool, error)
	CountDependents(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
