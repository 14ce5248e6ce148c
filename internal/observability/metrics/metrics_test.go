package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("reset_type", "manual"),
		attribute.String("model_id", "456"),
		attribute.String("reason", "weather_ingest"),
	)
	assert.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("reset_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("reason"), attrs[1].Key)
}

func TestClassifyTaskJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, TaskJobReasonDeadlineExceeded},
		{"reentrancy", fmt.Errorf("recalc: %w", gdddomain.ErrReentrancyLimit), TaskJobReasonReentrancyLimit},
		{"model_not_found", gdddomain.ErrModelNotFound, TaskJobReasonModelNotFound},
		{"lock", lock.ErrNotAcquired, TaskJobReasonLockTimeout},
		{"db_lock_timeout", &pgconn.PgError{Code: "55P03"}, TaskJobReasonDBLockTimeout},
		{"serialization_failure", &pgconn.PgError{Code: "40001"}, TaskJobReasonSerializationFailure},
		{"unique_violation", gorm.ErrDuplicatedKey, TaskJobReasonUniqueViolation},
		{"unknown", errors.New("boom"), TaskJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyTaskJobReason(tc.err))
		})
	}
}

func TestIsTaskErrorRetryable(t *testing.T) {
	assert.False(t, IsTaskErrorRetryable(nil))
	assert.False(t, IsTaskErrorRetryable(gdddomain.ErrReentrancyLimit))
	assert.False(t, IsTaskErrorRetryable(gdddomain.ErrModelNotFound))
	assert.True(t, IsTaskErrorRetryable(context.DeadlineExceeded))
	assert.True(t, IsTaskErrorRetryable(lock.ErrNotAcquired))
	assert.True(t, IsTaskErrorRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsTaskErrorRetryable(errors.New("boom")))
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newTaskMetrics(registry, Config{ServiceName: "turfkeeper", Environment: "test"})

	m.AddBatchProcessed("recalculate", "tasks", 3)
	m.AddBatchProcessed("recalculate", "tasks", 0)

	got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("recalculate", "tasks"))
	assert.Equal(t, float64(3), got)
}

func TestEngineMetricsObserveRecalculation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newEngineMetrics(registry, Config{ServiceName: "turfkeeper", Environment: "test"})

	m.ObserveRecalculation(2, 11, 10*time.Millisecond, nil)
	m.ObserveRecalculation(0, 0, time.Millisecond, gdddomain.ErrReentrancyLimit)
	m.IncThresholdReset()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.recalculations.WithLabelValues(RecalculationResultOK, "")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recalculations.WithLabelValues(RecalculationResultError, TaskJobReasonReentrancyLimit)))
	assert.Equal(t, float64(11), testutil.ToFloat64(m.valuesWritten))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.thresholdResets))
}

func TestHTTPMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "turfkeeper", Environment: "test"})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/gdd-models/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/gdd-models/%d", i), nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/gdd-models/:id", http.MethodGet, "200"))
	assert.Equal(t, float64(2), got)
}
