package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	CreateModel(ctx context.Context, req CreateModelRequest) (*ModelResponse, error)
	GetModel(ctx context.Context, id string) (*ModelResponse, error)
	ListModels(ctx context.Context, req ListModelsRequest) ([]ModelResponse, error)
	UpdateModel(ctx context.Context, req UpdateModelRequest) (*ModelResponse, error)
	DeleteModel(ctx context.Context, id string) error
	ListModelIDs(ctx context.Context) ([]snowflake.ID, error)

	ManualReset(ctx context.Context, req ManualResetRequest) (*ResetResponse, error)
	ListResets(ctx context.Context, modelID string) ([]ResetResponse, error)

	ApplyParameters(ctx context.Context, req ApplyParametersRequest) (*ModelResponse, error)
	ListParameterHistory(ctx context.Context, modelID string) ([]ParameterResponse, error)
	EffectiveParameters(ctx context.Context, modelID string, date time.Time) (*ParameterResponse, error)

	ListValues(ctx context.Context, req ListValuesRequest) ([]ValueResponse, error)
	ListRuns(ctx context.Context, modelID string) ([]RunSummary, error)
}

// Engine rebuilds a model's value series from weather, ledger and parameters.
type Engine interface {
	Recalculate(ctx context.Context, modelID, locationID snowflake.ID) (int, error)
	RecalculateModel(ctx context.Context, modelID snowflake.ID) (int, error)
}

// ResetLedger exposes the ledger writes other domains perform inside their
// own transactions.
type ResetLedger interface {
	InsertInitial(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, startDate time.Time) error
	ApplicationReset(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, date time.Time) (*Reset, error)
}

type CreateModelRequest struct {
	LawnID           string   `json:"lawn_id"`
	Name             string   `json:"name"`
	BaseTemp         *float64 `json:"base_temp"`
	Unit             string   `json:"unit"`
	StartDate        string   `json:"start_date"`
	Threshold        *float64 `json:"threshold"`
	ResetOnThreshold bool     `json:"reset_on_threshold"`
}

type ListModelsRequest struct {
	LawnID string
}

// UpdateModelRequest changes descriptive fields directly. Any parameter
// field routes through ApplyParameters with EffectiveFrom (default today).
type UpdateModelRequest struct {
	ID               string   `json:"id"`
	Name             *string  `json:"name,omitempty"`
	Unit             *string  `json:"unit,omitempty"`
	StartDate        *string  `json:"start_date,omitempty"`
	BaseTemp         *float64 `json:"base_temp,omitempty"`
	Threshold        *float64 `json:"threshold,omitempty"`
	ResetOnThreshold *bool    `json:"reset_on_threshold,omitempty"`
	EffectiveFrom    *string  `json:"effective_from,omitempty"`
}

// ManualResetRequest.Date is the last day of the current run.
type ManualResetRequest struct {
	ModelID string `json:"gdd_model_id"`
	Date    string `json:"date"`
}

type ApplyParametersRequest struct {
	ModelID          string   `json:"gdd_model_id"`
	BaseTemp         *float64 `json:"base_temp"`
	Threshold        *float64 `json:"threshold"`
	ResetOnThreshold *bool    `json:"reset_on_threshold"`
	EffectiveFrom    string   `json:"effective_from"`
}

type ListValuesRequest struct {
	ModelID string
	Run     string
	From    string
	To      string
}

type ModelResponse struct {
	ID               string    `json:"id"`
	LawnID           string    `json:"lawn_id"`
	Name             string    `json:"name"`
	BaseTemp         float64   `json:"base_temp"`
	Unit             Unit      `json:"unit"`
	StartDate        string    `json:"start_date"`
	Threshold        float64   `json:"threshold"`
	ResetOnThreshold bool      `json:"reset_on_threshold"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ResetResponse struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"gdd_model_id"`
	ResetDate string    `json:"reset_date"`
	RunNumber int       `json:"run_number"`
	ResetType ResetType `json:"reset_type"`
	CreatedAt time.Time `json:"created_at"`
}

type ParameterResponse struct {
	ModelID          string  `json:"gdd_model_id"`
	BaseTemp         float64 `json:"base_temp"`
	Threshold        float64 `json:"threshold"`
	ResetOnThreshold bool    `json:"reset_on_threshold"`
	EffectiveFrom    string  `json:"effective_from,omitempty"`
	Source           string  `json:"source"`
}

// Parameter sources reported by EffectiveParameters.
const (
	ParameterSourceHistory = "history"
	ParameterSourceModel   = "model"
)

type ValueResponse struct {
	Date          string   `json:"date"`
	DailyGDD      *float64 `json:"daily_gdd"`
	CumulativeGDD *float64 `json:"cumulative_gdd"`
	IsForecast    bool     `json:"is_forecast"`
	Run           int      `json:"run"`
}

type RunSummary struct {
	Run             int       `json:"run"`
	ResetType       ResetType `json:"reset_type"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date,omitempty"`
	Days            int       `json:"days"`
	FinalCumulative *float64  `json:"final_cumulative_gdd"`
}

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
