package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Location is a weather station point that lawns attach to.
type Location struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Latitude  *float64     `json:"latitude"`
	Longitude *float64     `json:"longitude"`
	Timezone  string       `json:"timezone" gorm:"type:text;not null;default:'UTC'"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Location) TableName() string { return "locations" }
