package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
		{"validation", gdddomain.ErrInvalidBaseTemp, http.StatusBadRequest, "validation_error"},
		{"wrapped validation", fmt.Errorf("create: %w", lawndomain.ErrInvalidGrassType), http.StatusBadRequest, "validation_error"},
		{"lawn mismatch", applicationdomain.ErrModelLawnMismatch, http.StatusBadRequest, "validation_error"},
		{"not found", gdddomain.ErrModelNotFound, http.StatusNotFound, "not_found"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"start date locked", gdddomain.ErrStartDateLocked, http.StatusConflict, "conflict"},
		{"duplicate key", gorm.ErrDuplicatedKey, http.StatusConflict, "conflict"},
		{"lock held", lock.ErrNotAcquired, http.StatusConflict, "conflict"},
		{"reentrancy", gdddomain.ErrReentrancyLimit, http.StatusUnprocessableEntity, "unprocessable"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, payload.Type)
		})
	}
}

func TestMapError_ValidationDetail(t *testing.T) {
	_, payload := mapError(gdddomain.ErrInvalidThreshold)
	assert.Equal(t, []ValidationError{{
		Field:   "threshold",
		Code:    "invalid_threshold",
		Message: "invalid value",
	}}, payload.Errors)

	_, payload = mapError(invalidRequestError())
	assert.Equal(t, "request", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(gdddomain.ErrInvalidUnit)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_unit", code)

	kind, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal_error", kind)
	assert.Equal(t, "internal_error", code)
}
