package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"github.com/smallbiznis/turfkeeper/internal/testutil"
	"github.com/smallbiznis/turfkeeper/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnqueuer_CoalescesPendingTask(t *testing.T) {
	h := newWorkerHarness(t, Config{})
	modelID := h.genID.Generate()

	first := h.enqueue(t, modelID, taskdomain.ReasonModelCreated)
	second := h.enqueue(t, modelID, taskdomain.ReasonWeatherIngested)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, taskdomain.ReasonModelCreated, second.Reason)

	var count int64
	require.NoError(t, h.db.Model(&taskdomain.Task{}).Where("gdd_model_id = ?", modelID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnqueuer_RunningTaskDoesNotAbsorbNewWork(t *testing.T) {
	h := newWorkerHarness(t, Config{})
	ctx := testutil.Ctx(t)
	modelID := h.genID.Generate()

	first := h.enqueue(t, modelID, taskdomain.ReasonModelCreated)
	claimed, err := h.repo.Claim(ctx, h.db, first.ID, h.clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	second := h.enqueue(t, modelID, taskdomain.ReasonManualReset)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, taskdomain.StatusPending, second.Status)
}

func TestEnqueuer_StoresMetadata(t *testing.T) {
	h := newWorkerHarness(t, Config{})
	task, err := h.enqueuer.EnqueueRecalculation(testutil.Ctx(t), h.db, taskdomain.EnqueueRequest{
		ModelID:  h.genID.Generate(),
		Reason:   taskdomain.ReasonManualReset,
		Metadata: map[string]any{"reset_date": "2024-06-16"},
	})
	require.NoError(t, err)

	got := h.load(t, task.ID)
	assert.Equal(t, taskdomain.KindGDDRecalculate, got.Kind)
	assert.Equal(t, "2024-06-16", got.Metadata["reset_date"])
}

func newTaskService(h *workerHarness) taskdomain.Service {
	return New(Params{DB: h.db, Log: zap.NewNop(), Repo: h.repo})
}

func TestService_Get(t *testing.T) {
	h := newWorkerHarness(t, Config{})
	svc := newTaskService(h)
	modelID := h.genID.Generate()
	task := h.enqueue(t, modelID, taskdomain.ReasonRequested)

	got, err := svc.Get(testutil.Ctx(t), task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, modelID.String(), got.ModelID)
	assert.Equal(t, taskdomain.StatusPending, got.Status)

	_, err = svc.Get(testutil.Ctx(t), "nope")
	assert.ErrorIs(t, err, taskdomain.ErrInvalidID)

	_, err = svc.Get(testutil.Ctx(t), h.genID.Generate().String())
	assert.ErrorIs(t, err, taskdomain.ErrNotFound)
}

func TestService_ListByModelPaginates(t *testing.T) {
	h := newWorkerHarness(t, Config{})
	ctx := testutil.Ctx(t)
	svc := newTaskService(h)
	modelID := h.genID.Generate()
	other := h.genID.Generate()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var ids []snowflake.ID
	for i := 0; i < 5; i++ {
		id := h.genID.Generate()
		ids = append(ids, id)
		insertFinishedTask(t, h, id, modelID, base.Add(time.Duration(i)*time.Minute))
	}
	insertFinishedTask(t, h, h.genID.Generate(), other, base)

	var seen []string
	token := ""
	pages := 0
	for {
		resp, err := svc.ListByModel(ctx, taskdomain.ListRequest{
			ModelID:    modelID.String(),
			Pagination: pagination.Pagination{PageSize: 2, PageToken: token},
		})
		require.NoError(t, err)
		pages++
		for _, item := range resp.Tasks {
			seen = append(seen, item.ID)
		}
		if resp.PageInfo == nil || !resp.PageInfo.HasMore {
			break
		}
		token = resp.PageInfo.NextPageToken
		require.NotEmpty(t, token)
		require.Less(t, pages, 5)
	}

	assert.Equal(t, 3, pages)
	want := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		want = append(want, ids[i].String())
	}
	assert.Equal(t, want, seen)
}

func TestService_ListByModelRejectsBadInput(t *testing.T) {
	h := newWorkerHarness(t, Config{})
	svc := newTaskService(h)

	_, err := svc.ListByModel(testutil.Ctx(t), taskdomain.ListRequest{ModelID: "x"})
	assert.ErrorIs(t, err, taskdomain.ErrInvalidModel)

	_, err = svc.ListByModel(testutil.Ctx(t), taskdomain.ListRequest{
		ModelID:    h.genID.Generate().String(),
		Pagination: pagination.Pagination{PageToken: "%%%"},
	})
	assert.ErrorIs(t, err, taskdomain.ErrInvalidPageToken)
}

func insertFinishedTask(t *testing.T, h *workerHarness, id, modelID snowflake.ID, createdAt time.Time) {
	t.Helper()
	task := &taskdomain.Task{
		ID:         id,
		Kind:       taskdomain.KindGDDRecalculate,
		GDDModelID: &modelID,
		Reason:     taskdomain.ReasonRequested,
		Status:     taskdomain.StatusSucceeded,
		RunAfter:   createdAt,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	require.NoError(t, h.repo.Insert(testutil.Ctx(t), h.db, task))
}
