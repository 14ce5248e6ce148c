package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/pkg/db/pagination"
	"gorm.io/gorm"
)

// Enqueuer records a recalculation request. Callers pass their own
// transaction so the task commits together with the change that caused it.
type Enqueuer interface {
	EnqueueRecalculation(ctx context.Context, db *gorm.DB, req EnqueueRequest) (*Task, error)
}

type EnqueueRequest struct {
	ModelID  snowflake.ID
	Reason   string
	Metadata map[string]any
}

type Service interface {
	Get(ctx context.Context, id string) (*Response, error)
	ListByModel(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type ListRequest struct {
	ModelID string
	pagination.Pagination
}

type Response struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	ModelID     string         `json:"gdd_model_id,omitempty"`
	Reason      string         `json:"reason"`
	Status      Status         `json:"status"`
	Attempts    int            `json:"attempts"`
	RowsWritten int            `json:"rows_written"`
	LastError   string         `json:"last_error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type ListResponse struct {
	Tasks    []Response           `json:"tasks"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidID        = errors.New("invalid_task_id")
	ErrInvalidModel     = errors.New("invalid_gdd_model_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("task_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
