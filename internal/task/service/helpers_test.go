package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"github.com/smallbiznis/turfkeeper/internal/task/repository"
	"github.com/smallbiznis/turfkeeper/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubEngine struct {
	mu    sync.Mutex
	calls []snowflake.ID
	rows  int
	err   error
}

func (e *stubEngine) Recalculate(ctx context.Context, modelID, _ snowflake.ID) (int, error) {
	return e.RecalculateModel(ctx, modelID)
}

func (e *stubEngine) RecalculateModel(_ context.Context, modelID snowflake.ID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, modelID)
	return e.rows, e.err
}

type stubModels struct {
	gdddomain.Service
	ids []snowflake.ID
}

func (m *stubModels) ListModelIDs(context.Context) ([]snowflake.ID, error) {
	return m.ids, nil
}

type workerHarness struct {
	db       *gorm.DB
	genID    *snowflake.Node
	repo     taskdomain.Repository
	enqueuer taskdomain.Enqueuer
	engine   *stubEngine
	models   *stubModels
	clock    *clock.FakeClock
	worker   *Worker
}

func newWorkerHarness(t *testing.T, cfg Config) *workerHarness {
	t.Helper()

	db := testutil.NewDB(t)
	genID := testutil.NewNode(t)
	repo := repository.Provide()
	enqueuer := NewEnqueuer(EnqueuerParams{Log: zap.NewNop(), GenID: genID, Repo: repo})
	engine := &stubEngine{}
	models := &stubModels{}
	// ahead of wall time so freshly enqueued tasks are due
	fakeClock := clock.NewFakeClock(time.Now().Add(time.Hour))

	worker, err := NewWorker(WorkerParams{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    genID,
		Clock:    fakeClock,
		Repo:     repo,
		Enqueuer: enqueuer,
		Engine:   engine,
		Models:   models,
		Config:   cfg,
	})
	require.NoError(t, err)

	return &workerHarness{
		db:       db,
		genID:    genID,
		repo:     repo,
		enqueuer: enqueuer,
		engine:   engine,
		models:   models,
		clock:    fakeClock,
		worker:   worker,
	}
}

func (h *workerHarness) enqueue(t *testing.T, modelID snowflake.ID, reason string) *taskdomain.Task {
	t.Helper()
	task, err := h.enqueuer.EnqueueRecalculation(testutil.Ctx(t), h.db, taskdomain.EnqueueRequest{
		ModelID: modelID,
		Reason:  reason,
	})
	require.NoError(t, err)
	return task
}

func (h *workerHarness) load(t *testing.T, id snowflake.ID) *taskdomain.Task {
	t.Helper()
	task, err := h.repo.FindByID(testutil.Ctx(t), h.db, id)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}
