package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	"github.com/smallbiznis/turfkeeper/internal/config"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	"github.com/smallbiznis/turfkeeper/internal/gdd/repository"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	taskrepository "github.com/smallbiznis/turfkeeper/internal/task/repository"
	taskservice "github.com/smallbiznis/turfkeeper/internal/task/service"
	"github.com/smallbiznis/turfkeeper/internal/testutil"
	weatherrepository "github.com/smallbiznis/turfkeeper/internal/weather/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	*testutil.Fixture
	repo   gdddomain.Repository
	svc    *Service
	engine *Engine
	clock  *clock.FakeClock
	lawnID snowflake.ID
}

func newHarness(t *testing.T, engineCfg config.EngineConfig) *harness {
	t.Helper()

	f := testutil.NewFixture(t)
	repo := repository.Provide()
	fakeClock := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	enqueuer := taskservice.NewEnqueuer(taskservice.EnqueuerParams{
		Log:   zap.NewNop(),
		GenID: f.GenID,
		Repo:  taskrepository.Provide(),
	})

	svc := newService(Params{
		DB:       f.DB,
		Log:      zap.NewNop(),
		GenID:    f.GenID,
		Clock:    fakeClock,
		Repo:     repo,
		Enqueuer: enqueuer,
	})
	engine := NewEngine(EngineParams{
		DB:      f.DB,
		Log:     zap.NewNop(),
		GenID:   f.GenID,
		Repo:    repo,
		Weather: weatherrepository.Provide(),
		Locker:  lock.NewMemoryLocker(),
		Config:  config.NewStaticEngineConfigHolder(engineCfg),
	}).(*Engine)

	locationID := f.Location(t)
	return &harness{
		Fixture: f,
		repo:    repo,
		svc:     svc,
		engine:  engine,
		clock:   fakeClock,
		lawnID:  f.Lawn(t, locationID),
	}
}

func (h *harness) locationID(t *testing.T) snowflake.ID {
	t.Helper()
	var id snowflake.ID
	require.NoError(t, h.DB.Raw(`SELECT location_id FROM lawns WHERE id = ?`, h.lawnID).Scan(&id).Error)
	return id
}

func (h *harness) createModel(t *testing.T, threshold float64, resetOnThreshold bool) snowflake.ID {
	t.Helper()
	resp, err := h.svc.CreateModel(testutil.Ctx(t), gdddomain.CreateModelRequest{
		LawnID:           h.lawnID.String(),
		Name:             "crabgrass pre-emergent",
		BaseTemp:         testutil.Float(10),
		Unit:             "C",
		StartDate:        "2024-01-01",
		Threshold:        testutil.Float(threshold),
		ResetOnThreshold: resetOnThreshold,
	})
	require.NoError(t, err)
	id, err := gdddomain.ParseID(resp.ID)
	require.NoError(t, err)
	return id
}

func (h *harness) recalculate(t *testing.T, modelID snowflake.ID) int {
	t.Helper()
	rows, err := h.engine.RecalculateModel(testutil.Ctx(t), modelID)
	require.NoError(t, err)
	return rows
}

func (h *harness) values(t *testing.T, modelID snowflake.ID) []gdddomain.Value {
	t.Helper()
	values, err := h.repo.ListValues(testutil.Ctx(t), h.DB, gdddomain.ValueFilter{ModelID: modelID})
	require.NoError(t, err)
	return values
}

func (h *harness) resets(t *testing.T, modelID snowflake.ID) []gdddomain.Reset {
	t.Helper()
	resets, err := h.repo.ListResets(testutil.Ctx(t), h.DB, modelID)
	require.NoError(t, err)
	return resets
}

func (h *harness) countTasks(t *testing.T, modelID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.DB.Raw(`SELECT COUNT(1) FROM tasks WHERE gdd_model_id = ?`, modelID).Scan(&count).Error)
	return count
}

func day(t *testing.T, value string) time.Time {
	return testutil.Date(t, value)
}
