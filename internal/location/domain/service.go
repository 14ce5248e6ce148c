package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
}

type CreateRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timezone  string   `json:"timezone"`
}

type UpdateRequest struct {
	ID        string   `json:"id"`
	Name      *string  `json:"name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timezone  *string  `json:"timezone,omitempty"`
}

type Response struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidLatitude  = errors.New("invalid_latitude")
	ErrInvalidLongitude = errors.New("invalid_longitude")
	ErrInvalidTimezone  = errors.New("invalid_timezone")
	ErrInvalidID        = errors.New("invalid_location_id")
	ErrNotFound         = errors.New("location_not_found")
	ErrInUse            = errors.New("location_in_use")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
