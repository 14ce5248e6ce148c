package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Unit string

const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

type ResetType string

const (
	ResetTypeInitial     ResetType = "initial"
	ResetTypeManual      ResetType = "manual"
	ResetTypeThreshold   ResetType = "threshold"
	ResetTypeApplication ResetType = "application"
)

// Model is a GDD accumulator attached to a lawn. BaseTemp, Threshold and
// ResetOnThreshold are the live parameters; dated overrides live in
// ParameterHistory.
type Model struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	LawnID           snowflake.ID `json:"lawn_id" gorm:"column:lawn_id;not null;index"`
	Name             string       `json:"name" gorm:"type:text;not null"`
	BaseTemp         float64      `json:"base_temp" gorm:"column:base_temp;not null"`
	Unit             Unit         `json:"unit" gorm:"type:text;not null"`
	StartDate        time.Time    `json:"start_date" gorm:"column:start_date;type:date;not null"`
	Threshold        float64      `json:"threshold" gorm:"not null;default:0"`
	ResetOnThreshold bool         `json:"reset_on_threshold" gorm:"column:reset_on_threshold;not null;default:false"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Model) TableName() string { return "gdd_models" }

// Parameters returns the live parameter set.
func (m Model) Parameters() Parameters {
	return Parameters{
		BaseTemp:         m.BaseTemp,
		Threshold:        m.Threshold,
		ResetOnThreshold: m.ResetOnThreshold,
	}
}

// Reset is one ledger entry. The entry starts a segment that runs until the
// next entry's ResetDate.
type Reset struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	GDDModelID snowflake.ID `json:"gdd_model_id" gorm:"column:gdd_model_id;not null;uniqueIndex:ux_gdd_resets_model_date,priority:1"`
	ResetDate  time.Time    `json:"reset_date" gorm:"column:reset_date;type:date;not null;uniqueIndex:ux_gdd_resets_model_date,priority:2"`
	RunNumber  int          `json:"run_number" gorm:"column:run_number;not null"`
	ResetType  ResetType    `json:"reset_type" gorm:"column:reset_type;type:text;not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Reset) TableName() string { return "gdd_resets" }

type ParameterHistory struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	GDDModelID       snowflake.ID `json:"gdd_model_id" gorm:"column:gdd_model_id;not null;uniqueIndex:ux_gdd_parameter_history_model_from,priority:1"`
	BaseTemp         float64      `json:"base_temp" gorm:"column:base_temp;not null"`
	Threshold        float64      `json:"threshold" gorm:"not null;default:0"`
	ResetOnThreshold bool         `json:"reset_on_threshold" gorm:"column:reset_on_threshold;not null;default:false"`
	EffectiveFrom    time.Time    `json:"effective_from" gorm:"column:effective_from;type:date;not null;uniqueIndex:ux_gdd_parameter_history_model_from,priority:2"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ParameterHistory) TableName() string { return "gdd_parameter_history" }

func (p ParameterHistory) Parameters() Parameters {
	return Parameters{
		BaseTemp:         p.BaseTemp,
		Threshold:        p.Threshold,
		ResetOnThreshold: p.ResetOnThreshold,
	}
}

// Value is one computed day. DailyGDD and CumulativeGDD are nil when the
// day's temperatures were incomplete.
type Value struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	GDDModelID    snowflake.ID `json:"gdd_model_id" gorm:"column:gdd_model_id;not null;uniqueIndex:ux_gdd_values_model_date,priority:1;index:ix_gdd_values_model_run,priority:1"`
	Date          time.Time    `json:"date" gorm:"column:date;type:date;not null;uniqueIndex:ux_gdd_values_model_date,priority:2"`
	DailyGDD      *float64     `json:"daily_gdd" gorm:"column:daily_gdd"`
	CumulativeGDD *float64     `json:"cumulative_gdd" gorm:"column:cumulative_gdd"`
	IsForecast    bool         `json:"is_forecast" gorm:"column:is_forecast;not null;default:false"`
	Run           int          `json:"run" gorm:"column:run;not null;index:ix_gdd_values_model_run,priority:2"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Value) TableName() string { return "gdd_values" }

type Parameters struct {
	BaseTemp         float64 `json:"base_temp"`
	Threshold        float64 `json:"threshold"`
	ResetOnThreshold bool    `json:"reset_on_threshold"`
}
