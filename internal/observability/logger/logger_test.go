package logger

import (
	"context"
	"strings"
	"testing"

	obscontext "github.com/smallbiznis/turfkeeper/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithModelID(ctx, "1001")
	ctx = obscontext.WithActor(ctx, "system", "task.worker")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "1001", fields["model_id"])
	assert.Equal(t, "system", fields["actor_type"])
	assert.Equal(t, "task.worker", fields["actor_id"])
	_, hasTrace := fields["trace_id"]
	assert.False(t, hasTrace)
}

func TestWithContextEmptyReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{"SELECT id FROM gdd_values WHERE gdd_model_id = ?", "SELECT", "gdd_values"},
		{"INSERT INTO gdd_resets (id) VALUES (?)", "INSERT", "gdd_resets"},
		{"UPDATE tasks SET status = ?", "UPDATE", "tasks"},
		{"DELETE FROM gdd_values WHERE date >= ?", "DELETE", "gdd_values"},
		{"WITH x AS (SELECT 1) SELECT * FROM x", "SELECT", "x"},
		{"", "UNKNOWN", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.operation, operationFromSQL(tc.sql), tc.sql)
		assert.Equal(t, tc.table, tableFromSQL(tc.sql), tc.sql)
	}
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseGormLevel("silent", gormlogger.Warn))
	assert.Equal(t, gormlogger.Info, ParseGormLevel(" DEBUG ", gormlogger.Warn))
	assert.Equal(t, gormlogger.Error, ParseGormLevel("error", gormlogger.Warn))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("bogus", gormlogger.Warn))
}

func TestLogRequestLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	logRequest(log, "/api/locations/:id/weather", 429, "rate_limited", nil)
	logRequest(log, "/api/locations/:id/weather", 400, "validation_error", nil)
	logRequest(log, "/api/gdd-models/:id", 500, "internal_error", nil)
	logRequest(log, "/health", 200, "", nil)

	entries := logs.All()
	if assert.Len(t, entries, 4) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, zap.DebugLevel, entries[1].Level)
		assert.Equal(t, zap.ErrorLevel, entries[2].Level)
		assert.Equal(t, zap.DebugLevel, entries[3].Level)
	}
}

func TestClipSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", clipSQL("  SELECT 1 "))

	long := "INSERT INTO gdd_values VALUES " + strings.Repeat("(?,?,?),", 400)
	clipped := clipSQL(long)
	assert.Len(t, clipped, maxLoggedSQL+len("...(truncated)"))
	assert.True(t, strings.HasSuffix(clipped, "...(truncated)"))
}
