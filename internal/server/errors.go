package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
	locationdomain "github.com/smallbiznis/turfkeeper/internal/location/domain"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"github.com/smallbiznis/turfkeeper/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, gdddomain.ErrReentrancyLimit),
		errors.Is(err, gdddomain.ErrNoResets):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type the client saw.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isLocationValidationError(err),
		isLawnValidationError(err),
		isWeatherValidationError(err),
		isGDDValidationError(err),
		isApplicationValidationError(err),
		isTaskValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, locationdomain.ErrNotFound),
		errors.Is(err, lawndomain.ErrNotFound),
		errors.Is(err, lawndomain.ErrLocationNotFound),
		errors.Is(err, weatherdomain.ErrLocationNotFound),
		errors.Is(err, gdddomain.ErrModelNotFound),
		errors.Is(err, gdddomain.ErrLawnNotFound),
		errors.Is(err, applicationdomain.ErrNotFound),
		errors.Is(err, applicationdomain.ErrLawnNotFound),
		errors.Is(err, applicationdomain.ErrModelNotFound),
		errors.Is(err, taskdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, locationdomain.ErrInUse),
		errors.Is(err, lawndomain.ErrInUse),
		errors.Is(err, gdddomain.ErrStartDateLocked),
		errors.Is(err, gdddomain.ErrInitialResetExists),
		errors.Is(err, lock.ErrNotAcquired),
		db.IsDuplicateKeyErr(err):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return "not found"
	}
	return err.Error()
}

func conflictMessage(err error) string {
	if errors.Is(err, lock.ErrNotAcquired) {
		return "another request for this resource is in progress"
	}
	if errors.Is(err, ErrConflict) || db.IsDuplicateKeyErr(err) {
		return "conflict"
	}
	return err.Error()
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_reset_date":
		return "reset date must fall after the model start date"
	default:
		return "invalid value"
	}
}

func isLocationValidationError(err error) bool {
	switch {
	case errors.Is(err, locationdomain.ErrInvalidName),
		errors.Is(err, locationdomain.ErrInvalidLatitude),
		errors.Is(err, locationdomain.ErrInvalidLongitude),
		errors.Is(err, locationdomain.ErrInvalidTimezone),
		errors.Is(err, locationdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isLawnValidationError(err error) bool {
	switch {
	case errors.Is(err, lawndomain.ErrInvalidName),
		errors.Is(err, lawndomain.ErrInvalidGrassType),
		errors.Is(err, lawndomain.ErrInvalidLocation),
		errors.Is(err, lawndomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isWeatherValidationError(err error) bool {
	switch {
	case errors.Is(err, weatherdomain.ErrInvalidLocation),
		errors.Is(err, weatherdomain.ErrEmptyRecords),
		errors.Is(err, weatherdomain.ErrTooManyRecords),
		errors.Is(err, weatherdomain.ErrInvalidDate),
		errors.Is(err, weatherdomain.ErrDuplicateDate),
		errors.Is(err, weatherdomain.ErrInvalidRecordType),
		errors.Is(err, weatherdomain.ErrInvalidTemperature),
		errors.Is(err, weatherdomain.ErrInvalidDateRange):
		return true
	default:
		return false
	}
}

func isGDDValidationError(err error) bool {
	switch {
	case errors.Is(err, gdddomain.ErrInvalidReset),
		errors.Is(err, gdddomain.ErrInvalidID),
		errors.Is(err, gdddomain.ErrInvalidLawn),
		errors.Is(err, gdddomain.ErrInvalidName),
		errors.Is(err, gdddomain.ErrInvalidUnit),
		errors.Is(err, gdddomain.ErrInvalidBaseTemp),
		errors.Is(err, gdddomain.ErrInvalidThreshold),
		errors.Is(err, gdddomain.ErrInvalidStartDate),
		errors.Is(err, gdddomain.ErrInvalidEffectiveFrom),
		errors.Is(err, gdddomain.ErrInvalidRun),
		errors.Is(err, gdddomain.ErrInvalidDateRange):
		return true
	default:
		return false
	}
}

func isApplicationValidationError(err error) bool {
	switch {
	case errors.Is(err, applicationdomain.ErrInvalidID),
		errors.Is(err, applicationdomain.ErrInvalidLawn),
		errors.Is(err, applicationdomain.ErrInvalidProductName),
		errors.Is(err, applicationdomain.ErrInvalidApplicationDate),
		errors.Is(err, applicationdomain.ErrInvalidModel),
		errors.Is(err, applicationdomain.ErrModelLawnMismatch):
		return true
	default:
		return false
	}
}

func isTaskValidationError(err error) bool {
	switch {
	case errors.Is(err, taskdomain.ErrInvalidID),
		errors.Is(err, taskdomain.ErrInvalidModel),
		errors.Is(err, taskdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}
