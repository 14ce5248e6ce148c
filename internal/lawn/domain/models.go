package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Lawn struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	LocationID snowflake.ID `json:"location_id" gorm:"not null;index"`
	Name       string       `json:"name" gorm:"type:text;not null"`
	GrassType  string       `json:"grass_type" gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Lawn) TableName() string { return "lawns" }
