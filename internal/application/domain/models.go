package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Application records a product applied to a lawn. When tied to a GDD model
// the application date restarts that model's accumulation.
type Application struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	LawnID          snowflake.ID  `json:"lawn_id" gorm:"column:lawn_id;not null;index"`
	ProductName     string        `json:"product_name" gorm:"column:product_name;type:text;not null"`
	ApplicationDate time.Time     `json:"application_date" gorm:"column:application_date;type:date;not null"`
	TiedGDDModelID  *snowflake.ID `json:"tied_gdd_model_id" gorm:"column:tied_gdd_model_id;index"`
	Notes           string        `json:"notes" gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Application) TableName() string { return "applications" }
