package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type RecordType string

const (
	RecordTypeHistorical RecordType = "historical"
	RecordTypeForecast   RecordType = "forecast"
)

// Record is one day of temperatures for a location. Missing readings stay
// nil, never zero.
type Record struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	LocationID      snowflake.ID `json:"location_id" gorm:"column:location_id;not null;uniqueIndex:ux_weather_daily_location_date,priority:1"`
	Date            time.Time    `json:"date" gorm:"column:date;type:date;not null;uniqueIndex:ux_weather_daily_location_date,priority:2"`
	TemperatureMaxC *float64     `json:"temperature_max_c" gorm:"column:temperature_max_c"`
	TemperatureMinC *float64     `json:"temperature_min_c" gorm:"column:temperature_min_c"`
	TemperatureMaxF *float64     `json:"temperature_max_f" gorm:"column:temperature_max_f"`
	TemperatureMinF *float64     `json:"temperature_min_f" gorm:"column:temperature_min_f"`
	Type            RecordType   `json:"type" gorm:"column:type;type:text;not null"`
	IngestID        string       `json:"ingest_id" gorm:"column:ingest_id;type:text;not null;default:''"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Record) TableName() string { return "weather_daily" }

// Temperatures returns the max/min pair for unit "C" or "F".
func (r Record) Temperatures(unit string) (*float64, *float64) {
	if unit == "F" {
		return r.TemperatureMaxF, r.TemperatureMinF
	}
	return r.TemperatureMaxC, r.TemperatureMinC
}

func (r Record) IsForecast() bool {
	return r.Type == RecordTypeForecast
}
