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

type CreateRequest struct {
	LawnID          string `json:"lawn_id"`
	ProductName     string `json:"product_name"`
	ApplicationDate string `json:"application_date"`
	TiedGDDModelID  string `json:"tied_gdd_model_id"`
	Notes           string `json:"notes"`
}

type ListRequest struct {
	LawnID         string
	TiedGDDModelID string
}

// UpdateRequest changes only the non-nil fields. An empty TiedGDDModelID
// unties the application.
type UpdateRequest struct {
	ID              string  `json:"id"`
	ProductName     *string `json:"product_name,omitempty"`
	ApplicationDate *string `json:"application_date,omitempty"`
	TiedGDDModelID  *string `json:"tied_gdd_model_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type Response struct {
	ID              string    `json:"id"`
	LawnID          string    `json:"lawn_id"`
	ProductName     string    `json:"product_name"`
	ApplicationDate string    `json:"application_date"`
	TiedGDDModelID  *string   `json:"tied_gdd_model_id"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var (
	ErrInvalidID              = errors.New("invalid_application_id")
	ErrNotFound               = errors.New("application_not_found")
	ErrInvalidLawn            = errors.New("invalid_lawn_id")
	ErrLawnNotFound           = errors.New("lawn_not_found")
	ErrInvalidProductName     = errors.New("invalid_product_name")
	ErrInvalidApplicationDate = errors.New("invalid_application_date")
	ErrInvalidModel           = errors.New("invalid_gdd_model_id")
	ErrModelNotFound          = errors.New("gdd_model_not_found")
	ErrModelLawnMismatch      = errors.New("gdd_model_lawn_mismatch")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
