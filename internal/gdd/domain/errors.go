package domain

import "errors"

var (
	ErrModelNotFound      = errors.New("gdd_model_not_found")
	ErrNoResets           = errors.New("gdd_model_has_no_resets")
	ErrInvalidReset       = errors.New("invalid_reset_date")
	ErrReentrancyLimit    = errors.New("gdd_reentrancy_limit")
	ErrInitialResetExists = errors.New("initial_reset_exists")
	ErrStartDateLocked    = errors.New("start_date_locked")

	ErrInvalidID            = errors.New("invalid_gdd_model_id")
	ErrInvalidLawn          = errors.New("invalid_lawn_id")
	ErrLawnNotFound         = errors.New("lawn_not_found")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidUnit          = errors.New("invalid_unit")
	ErrInvalidBaseTemp      = errors.New("invalid_base_temp")
	ErrInvalidThreshold     = errors.New("invalid_threshold")
	ErrInvalidStartDate     = errors.New("invalid_start_date")
	ErrInvalidEffectiveFrom = errors.New("invalid_effective_from")
	ErrInvalidRun           = errors.New("invalid_run")
	ErrInvalidDateRange     = errors.New("invalid_date_range")
)
