package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const KindGDDRecalculate Kind = "gdd_recalculate"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Reasons recorded on enqueued recalculations.
const (
	ReasonModelCreated      = "model_created"
	ReasonModelUpdated      = "model_updated"
	ReasonParametersChanged = "parameters_changed"
	ReasonManualReset       = "manual_reset"
	ReasonApplicationReset  = "application_reset"
	ReasonWeatherIngested   = "weather_ingested"
	ReasonRequested         = "requested"
	ReasonBackfill          = "backfill"
)

// Task is a unit of background work. Rows double as the job status record
// surfaced through the API.
type Task struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	Kind        Kind              `json:"kind" gorm:"type:text;not null"`
	GDDModelID  *snowflake.ID     `json:"gdd_model_id" gorm:"column:gdd_model_id;index"`
	Reason      string            `json:"reason" gorm:"type:text;not null"`
	Status      Status            `json:"status" gorm:"type:text;not null;index:ix_tasks_status_run_after,priority:1"`
	Attempts    int               `json:"attempts" gorm:"not null;default:0"`
	RowsWritten int               `json:"rows_written" gorm:"column:rows_written;not null;default:0"`
	LastError   *string           `json:"last_error" gorm:"column:last_error;type:text"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	RunAfter    time.Time         `json:"run_after" gorm:"column:run_after;not null;index:ix_tasks_status_run_after,priority:2"`
	StartedAt   *time.Time        `json:"started_at" gorm:"column:started_at"`
	FinishedAt  *time.Time        `json:"finished_at" gorm:"column:finished_at"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Task) TableName() string { return "tasks" }
