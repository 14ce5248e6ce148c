package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
	"github.com/smallbiznis/turfkeeper/internal/application/repository"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	gddrepository "github.com/smallbiznis/turfkeeper/internal/gdd/repository"
	gddservice "github.com/smallbiznis/turfkeeper/internal/gdd/service"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	taskrepository "github.com/smallbiznis/turfkeeper/internal/task/repository"
	taskservice "github.com/smallbiznis/turfkeeper/internal/task/service"
	"github.com/smallbiznis/turfkeeper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	*testutil.Fixture
	svc     applicationdomain.Service
	gddRepo gdddomain.Repository
	lawnID  snowflake.ID
	modelID snowflake.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := testutil.NewFixture(t)
	gddRepo := gddrepository.Provide()
	svc := New(Params{
		DB:    f.DB,
		Log:   zap.NewNop(),
		GenID: f.GenID,
		Repo:  repository.Provide(),
		Ledger: gddservice.NewResetLedger(gddservice.LedgerParams{
			Log:   zap.NewNop(),
			GenID: f.GenID,
			Repo:  gddRepo,
		}),
		Enqueuer: taskservice.NewEnqueuer(taskservice.EnqueuerParams{
			Log:   zap.NewNop(),
			GenID: f.GenID,
			Repo:  taskrepository.Provide(),
		}),
	})

	lawnID := f.Lawn(t, f.Location(t))
	return &harness{
		Fixture: f,
		svc:     svc,
		gddRepo: gddRepo,
		lawnID:  lawnID,
		modelID: f.Model(t, lawnID, testutil.Date(t, "2024-01-01")),
	}
}

func (h *harness) resetDates(t *testing.T) []string {
	t.Helper()
	resets, err := h.gddRepo.ListResets(testutil.Ctx(t), h.DB, h.modelID)
	require.NoError(t, err)
	out := make([]string, 0, len(resets))
	for _, r := range resets {
		out = append(out, r.ResetDate.Format(gdddomain.DateLayout)+"/"+string(r.ResetType))
	}
	return out
}

func (h *harness) countApplications(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.DB.Raw(`SELECT COUNT(1) FROM applications`).Scan(&count).Error)
	return count
}

func TestCreate_TiedApplicationResetsModel(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)

	resp, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "  prodiamine  ",
		ApplicationDate: "2024-05-10",
		TiedGDDModelID:  h.modelID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "prodiamine", resp.ProductName)
	assert.Equal(t, "2024-05-10", resp.ApplicationDate)
	require.NotNil(t, resp.TiedGDDModelID)
	assert.Equal(t, h.modelID.String(), *resp.TiedGDDModelID)

	// application resets land on the application date itself
	assert.Equal(t, []string{"2024-01-01/initial", "2024-05-10/application"}, h.resetDates(t))

	var task taskdomain.Task
	require.NoError(t, h.DB.Where("gdd_model_id = ?", h.modelID).First(&task).Error)
	assert.Equal(t, taskdomain.ReasonApplicationReset, task.Reason)
	assert.Equal(t, "2024-05-10", task.Metadata["reset_date"])
	assert.Equal(t, resp.ID, task.Metadata["application_id"])
}

func TestCreate_UntiedLeavesLedgerAlone(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(testutil.Ctx(t), applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "fertilizer",
		ApplicationDate: "2024-05-10",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01/initial"}, h.resetDates(t))
}

func TestCreate_RollsBackOnLedgerError(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)

	_, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2024-01-01",
		TiedGDDModelID:  h.modelID.String(),
	})
	assert.ErrorIs(t, err, gdddomain.ErrInvalidReset)
	assert.Zero(t, h.countApplications(t))

	// before the start date is refused the same way
	_, err = h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2023-12-15",
		TiedGDDModelID:  h.modelID.String(),
	})
	assert.ErrorIs(t, err, gdddomain.ErrInvalidReset)
	assert.Zero(t, h.countApplications(t))

	otherLawn := h.Lawn(t, h.Location(t))
	_, err = h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          otherLawn.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2024-05-10",
		TiedGDDModelID:  h.modelID.String(),
	})
	assert.ErrorIs(t, err, applicationdomain.ErrModelLawnMismatch)
	assert.Zero(t, h.countApplications(t))
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  applicationdomain.CreateRequest
		want error
	}{
		{"bad lawn", applicationdomain.CreateRequest{LawnID: "x", ProductName: "p", ApplicationDate: "2024-05-10"}, applicationdomain.ErrInvalidLawn},
		{"unknown lawn", applicationdomain.CreateRequest{LawnID: h.GenID.Generate().String(), ProductName: "p", ApplicationDate: "2024-05-10"}, applicationdomain.ErrLawnNotFound},
		{"blank product", applicationdomain.CreateRequest{LawnID: h.lawnID.String(), ProductName: " ", ApplicationDate: "2024-05-10"}, applicationdomain.ErrInvalidProductName},
		{"bad date", applicationdomain.CreateRequest{LawnID: h.lawnID.String(), ProductName: "p", ApplicationDate: "May 10"}, applicationdomain.ErrInvalidApplicationDate},
		{"bad model", applicationdomain.CreateRequest{LawnID: h.lawnID.String(), ProductName: "p", ApplicationDate: "2024-05-10", TiedGDDModelID: "x"}, applicationdomain.ErrInvalidModel},
		{"unknown model", applicationdomain.CreateRequest{LawnID: h.lawnID.String(), ProductName: "p", ApplicationDate: "2024-05-10", TiedGDDModelID: h.GenID.Generate().String()}, applicationdomain.ErrModelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Create(testutil.Ctx(t), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdate_MovingDateReplacesLaterResets(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)

	created, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2024-05-10",
		TiedGDDModelID:  h.modelID.String(),
	})
	require.NoError(t, err)

	date := "2024-04-20"
	updated, err := h.svc.Update(ctx, applicationdomain.UpdateRequest{ID: created.ID, ApplicationDate: &date})
	require.NoError(t, err)
	assert.Equal(t, date, updated.ApplicationDate)
	assert.Equal(t, []string{"2024-01-01/initial", "2024-04-20/application"}, h.resetDates(t))
}

func TestUpdate_TiedReplacesApplicationReset(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)

	created, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2024-05-01",
		TiedGDDModelID:  h.modelID.String(),
	})
	require.NoError(t, err)

	// lose the ledger entry and let the create task finish
	require.NoError(t, h.DB.Exec(
		`DELETE FROM gdd_resets WHERE gdd_model_id = ? AND reset_type = ?`,
		h.modelID, string(gdddomain.ResetTypeApplication),
	).Error)
	require.NoError(t, h.DB.Exec(
		`UPDATE tasks SET status = ? WHERE gdd_model_id = ?`,
		string(taskdomain.StatusSucceeded), h.modelID,
	).Error)

	notes := "half rate"
	updated, err := h.svc.Update(ctx, applicationdomain.UpdateRequest{ID: created.ID, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, []string{"2024-01-01/initial", "2024-05-01/application"}, h.resetDates(t))

	var pending int64
	require.NoError(t, h.DB.Raw(
		`SELECT COUNT(1) FROM tasks WHERE gdd_model_id = ? AND status = ?`,
		h.modelID, string(taskdomain.StatusPending),
	).Scan(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestUpdate_SameDateKeepsSingleApplicationReset(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)

	created, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2024-05-10",
		TiedGDDModelID:  h.modelID.String(),
	})
	require.NoError(t, err)

	sameDate := "2024-05-10"
	_, err = h.svc.Update(ctx, applicationdomain.UpdateRequest{ID: created.ID, ApplicationDate: &sameDate})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01/initial", "2024-05-10/application"}, h.resetDates(t))
}

func TestUpdate_Untie(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)

	created, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
		LawnID:          h.lawnID.String(),
		ProductName:     "prodiamine",
		ApplicationDate: "2024-05-10",
		TiedGDDModelID:  h.modelID.String(),
	})
	require.NoError(t, err)

	empty := ""
	updated, err := h.svc.Update(ctx, applicationdomain.UpdateRequest{ID: created.ID, TiedGDDModelID: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.TiedGDDModelID)
}

func TestListGetDelete(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Ctx(t)
	otherLawn := h.Lawn(t, h.Location(t))

	for _, lawnID := range []snowflake.ID{h.lawnID, h.lawnID, otherLawn} {
		_, err := h.svc.Create(ctx, applicationdomain.CreateRequest{
			LawnID:          lawnID.String(),
			ProductName:     "fertilizer",
			ApplicationDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC).Format(gdddomain.DateLayout),
		})
		require.NoError(t, err)
	}

	items, err := h.svc.List(ctx, applicationdomain.ListRequest{LawnID: h.lawnID.String()})
	require.NoError(t, err)
	require.Len(t, items, 2)

	got, err := h.svc.GetByID(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, got.ID)

	require.NoError(t, h.svc.Delete(ctx, got.ID))
	_, err = h.svc.GetByID(ctx, got.ID)
	assert.ErrorIs(t, err, applicationdomain.ErrNotFound)

	_, err = h.svc.GetByID(ctx, "x")
	assert.ErrorIs(t, err, applicationdomain.ErrInvalidID)
}
