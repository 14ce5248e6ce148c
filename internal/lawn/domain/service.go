package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
}

// Grass types a lawn may declare; empty means unspecified.
const (
	GrassTypeCoolSeason = "cool_season"
	GrassTypeWarmSeason = "warm_season"
)

type CreateRequest struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	GrassType  string `json:"grass_type"`
}

type ListRequest struct {
	LocationID string
}

type UpdateRequest struct {
	ID        string  `json:"id"`
	Name      *string `json:"name,omitempty"`
	GrassType *string `json:"grass_type,omitempty"`
}

type Response struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	Name       string    `json:"name"`
	GrassType  string    `json:"grass_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidGrassType = errors.New("invalid_grass_type")
	ErrInvalidLocation  = errors.New("invalid_location_id")
	ErrLocationNotFound = errors.New("location_not_found")
	ErrInvalidID        = errors.New("invalid_lawn_id")
	ErrNotFound         = errors.New("lawn_not_found")
	ErrInUse            = errors.New("lawn_in_use")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
