package domain

import (
	"context"
	"errors"
	"math"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*UpsertResponse, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
}

type UpsertRequest struct {
	LocationID string        `json:"location_id"`
	Records    []RecordInput `json:"records"`
}

type RecordInput struct {
	Date            string   `json:"date"`
	TemperatureMaxC *float64 `json:"temperature_max_c"`
	TemperatureMinC *float64 `json:"temperature_min_c"`
	TemperatureMaxF *float64 `json:"temperature_max_f"`
	TemperatureMinF *float64 `json:"temperature_min_f"`
	Type            string   `json:"type"`
}

type UpsertResponse struct {
	IngestID       string `json:"ingest_id"`
	RecordsWritten int    `json:"records_written"`
	ModelsEnqueued int    `json:"models_enqueued"`
}

type ListRequest struct {
	LocationID string
	From       string
	To         string
}

type Response struct {
	Date            string     `json:"date"`
	TemperatureMaxC *float64   `json:"temperature_max_c"`
	TemperatureMinC *float64   `json:"temperature_min_c"`
	TemperatureMaxF *float64   `json:"temperature_max_f"`
	TemperatureMinF *float64   `json:"temperature_min_f"`
	Type            RecordType `json:"type"`
	IngestID        string     `json:"ingest_id,omitempty"`
}

const MaxRecordsPerUpsert = 1000

var (
	ErrInvalidLocation    = errors.New("invalid_location_id")
	ErrLocationNotFound   = errors.New("location_not_found")
	ErrEmptyRecords       = errors.New("empty_records")
	ErrTooManyRecords     = errors.New("too_many_records")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrDuplicateDate      = errors.New("duplicate_date")
	ErrInvalidRecordType  = errors.New("invalid_record_type")
	ErrInvalidTemperature = errors.New("invalid_temperature")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
)

// CelsiusToFahrenheit converts a reading; nil stays nil.
func CelsiusToFahrenheit(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c*9/5 + 32
	return &v
}

func FahrenheitToCelsius(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := (*f - 32) * 5 / 9
	return &v
}

func ValidTemperature(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > -150 && *v < 200)
}

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
