package service

import (
	"testing"
	"time"

	"github.com/smallbiznis/turfkeeper/internal/config"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	"github.com/smallbiznis/turfkeeper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateModel_WritesInitialResetHistoryAndTask(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	modelID := h.createModel(t, 200, true)

	resets := h.resets(t, modelID)
	require.Len(t, resets, 1)
	assert.Equal(t, gdddomain.ResetTypeInitial, resets[0].ResetType)
	assert.Equal(t, 1, resets[0].RunNumber)
	assert.Equal(t, day(t, "2024-01-01"), resets[0].ResetDate)

	history, err := h.svc.ListParameterHistory(testutil.Ctx(t), modelID.String())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-01-01", history[0].EffectiveFrom)
	assert.Equal(t, 200.0, history[0].Threshold)

	assert.Equal(t, int64(1), h.countTasks(t, modelID))
}

func TestCreateModel_Validation(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	valid := gdddomain.CreateModelRequest{
		LawnID:    h.lawnID.String(),
		Name:      "model",
		BaseTemp:  testutil.Float(10),
		Unit:      "C",
		StartDate: "2024-01-01",
	}

	cases := map[string]struct {
		mutate func(*gdddomain.CreateModelRequest)
		err    error
	}{
		"bad lawn":       {func(r *gdddomain.CreateModelRequest) { r.LawnID = "x" }, gdddomain.ErrInvalidLawn},
		"missing lawn":   {func(r *gdddomain.CreateModelRequest) { r.LawnID = "12345" }, gdddomain.ErrLawnNotFound},
		"empty name":     {func(r *gdddomain.CreateModelRequest) { r.Name = " " }, gdddomain.ErrInvalidName},
		"bad unit":       {func(r *gdddomain.CreateModelRequest) { r.Unit = "K" }, gdddomain.ErrInvalidUnit},
		"no base":        {func(r *gdddomain.CreateModelRequest) { r.BaseTemp = nil }, gdddomain.ErrInvalidBaseTemp},
		"bad start":      {func(r *gdddomain.CreateModelRequest) { r.StartDate = "01/01/2024" }, gdddomain.ErrInvalidStartDate},
		"negative limit": {func(r *gdddomain.CreateModelRequest) { r.Threshold = testutil.Float(-1) }, gdddomain.ErrInvalidThreshold},
		"zero threshold reset": {func(r *gdddomain.CreateModelRequest) {
			r.ResetOnThreshold = true
		}, gdddomain.ErrInvalidThreshold},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := h.svc.CreateModel(ctx, req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestManualReset_ShiftsDateAndDropsLaterResets(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 500, true)
	require.NoError(t, h.repo.InsertReset(ctx, h.DB, &gdddomain.Reset{
		ID:         h.GenID.Generate(),
		GDDModelID: modelID,
		ResetDate:  day(t, "2024-08-01"),
		RunNumber:  2,
		ResetType:  gdddomain.ResetTypeThreshold,
		CreatedAt:  time.Now().UTC(),
	}))

	resp, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{
		ModelID: modelID.String(),
		Date:    "2024-06-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-16", resp.ResetDate)
	assert.Equal(t, 2, resp.RunNumber)
	assert.Equal(t, gdddomain.ResetTypeManual, resp.ResetType)

	resets := h.resets(t, modelID)
	require.Len(t, resets, 2)
	assert.Equal(t, day(t, "2024-01-01"), resets[0].ResetDate)
	assert.Equal(t, day(t, "2024-06-16"), resets[1].ResetDate)
}

func TestManualReset_ReplacesSameDateEntry(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)

	first, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{ModelID: modelID.String(), Date: "2024-04-01"})
	require.NoError(t, err)
	second, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{ModelID: modelID.String(), Date: "2024-04-01"})
	require.NoError(t, err)

	assert.Equal(t, first.ResetDate, second.ResetDate)
	assert.Equal(t, 2, second.RunNumber)
	assert.Len(t, h.resets(t, modelID), 2)
}

func TestManualReset_RejectsDatesAtOrBeforeInitial(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)

	for _, date := range []string{"2023-12-30", "2023-12-31", "not-a-date"} {
		_, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{ModelID: modelID.String(), Date: date})
		assert.ErrorIs(t, err, gdddomain.ErrInvalidReset, date)
	}
	assert.Len(t, h.resets(t, modelID), 1)
}

func TestManualReset_UnknownModel(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	_, err := h.svc.ManualReset(testutil.Ctx(t), gdddomain.ManualResetRequest{
		ModelID: h.GenID.Generate().String(),
		Date:    "2024-02-01",
	})
	assert.ErrorIs(t, err, gdddomain.ErrModelNotFound)
}

func TestManualReset_RecalculationUsesNewRun(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)
	h.ConstantWeather(t, h.locationID(t), day(t, "2024-01-01"), 6, 20, 10)

	_, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{ModelID: modelID.String(), Date: "2024-01-03"})
	require.NoError(t, err)
	h.recalculate(t, modelID)

	values := h.values(t, modelID)
	require.Len(t, values, 6)
	assert.Equal(t, 1, values[2].Run)
	assert.Equal(t, 15.0, *values[2].CumulativeGDD)
	assert.Equal(t, 2, values[3].Run)
	assert.Equal(t, 5.0, *values[3].CumulativeGDD)
}

func TestApplicationReset_UsesDateAsIs(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)

	reset, err := h.svc.ledger.ApplicationReset(ctx, h.DB, modelID, day(t, "2024-05-10"))
	require.NoError(t, err)
	assert.Equal(t, day(t, "2024-05-10"), reset.ResetDate)
	assert.Equal(t, gdddomain.ResetTypeApplication, reset.ResetType)
	assert.Equal(t, 2, reset.RunNumber)

	_, err = h.svc.ledger.ApplicationReset(ctx, h.DB, modelID, day(t, "2024-01-01"))
	assert.ErrorIs(t, err, gdddomain.ErrInvalidReset)
}

func TestInsertInitial_RefusesNonEmptyLedger(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	modelID := h.createModel(t, 0, false)

	err := h.svc.ledger.InsertInitial(testutil.Ctx(t), h.DB, modelID, day(t, "2024-01-01"))
	assert.ErrorIs(t, err, gdddomain.ErrInitialResetExists)
}

func TestEffectiveParameters(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 100, true)

	_, err := h.svc.ApplyParameters(ctx, gdddomain.ApplyParametersRequest{
		ModelID:       modelID.String(),
		BaseTemp:      testutil.Float(6),
		EffectiveFrom: "2024-04-01",
	})
	require.NoError(t, err)

	early, err := h.svc.EffectiveParameters(ctx, modelID.String(), day(t, "2024-03-31"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, early.BaseTemp)
	assert.Equal(t, "2024-01-01", early.EffectiveFrom)
	assert.Equal(t, gdddomain.ParameterSourceHistory, early.Source)

	late, err := h.svc.EffectiveParameters(ctx, modelID.String(), day(t, "2024-04-01"))
	require.NoError(t, err)
	assert.Equal(t, 6.0, late.BaseTemp)
	assert.Equal(t, 100.0, late.Threshold)

	before, err := h.svc.EffectiveParameters(ctx, modelID.String(), day(t, "2023-06-01"))
	require.NoError(t, err)
	assert.Equal(t, gdddomain.ParameterSourceModel, before.Source)
	assert.Equal(t, 6.0, before.BaseTemp)
}

func TestApplyParameters_UpsertsSameDateAndDropsLaterValues(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)
	h.ConstantWeather(t, h.locationID(t), day(t, "2024-01-01"), 10, 20, 10)
	h.recalculate(t, modelID)

	for _, base := range []float64{8, 7} {
		_, err := h.svc.ApplyParameters(ctx, gdddomain.ApplyParametersRequest{
			ModelID:       modelID.String(),
			BaseTemp:      testutil.Float(base),
			EffectiveFrom: "2024-01-05",
		})
		require.NoError(t, err)
	}

	history, err := h.svc.ListParameterHistory(ctx, modelID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 7.0, history[1].BaseTemp)

	values := h.values(t, modelID)
	require.Len(t, values, 4)
	assert.Equal(t, day(t, "2024-01-04"), values[3].Date)

	model, err := h.svc.GetModel(ctx, modelID.String())
	require.NoError(t, err)
	assert.Equal(t, 7.0, model.BaseTemp)
}

func TestApplyParameters_DefaultsToToday(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)

	_, err := h.svc.ApplyParameters(ctx, gdddomain.ApplyParametersRequest{
		ModelID:  modelID.String(),
		BaseTemp: testutil.Float(4),
	})
	require.NoError(t, err)

	history, err := h.svc.ListParameterHistory(ctx, modelID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-03-01", history[1].EffectiveFrom)
}

func TestApplyParameters_RejectsDateBeforeStart(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	modelID := h.createModel(t, 0, false)

	_, err := h.svc.ApplyParameters(testutil.Ctx(t), gdddomain.ApplyParametersRequest{
		ModelID:       modelID.String(),
		BaseTemp:      testutil.Float(4),
		EffectiveFrom: "2023-12-01",
	})
	assert.ErrorIs(t, err, gdddomain.ErrInvalidEffectiveFrom)
}

func TestUpdateModel_MovesStartDateWhileUntouched(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)

	start := "2024-02-01"
	name := "renamed"
	resp, err := h.svc.UpdateModel(ctx, gdddomain.UpdateModelRequest{
		ID:        modelID.String(),
		Name:      &name,
		StartDate: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", resp.Name)
	assert.Equal(t, "2024-02-01", resp.StartDate)
	assert.Equal(t, day(t, "2024-02-01"), h.resets(t, modelID)[0].ResetDate)

	history, err := h.svc.ListParameterHistory(ctx, modelID.String())
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", history[0].EffectiveFrom)
}

func TestUpdateModel_StartDateLockedAfterReset(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)
	_, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{ModelID: modelID.String(), Date: "2024-05-01"})
	require.NoError(t, err)

	start := "2024-02-01"
	_, err = h.svc.UpdateModel(ctx, gdddomain.UpdateModelRequest{ID: modelID.String(), StartDate: &start})
	assert.ErrorIs(t, err, gdddomain.ErrStartDateLocked)
}

func TestUpdateModel_ParametersAreVersioned(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)

	threshold := 300.0
	reset := true
	from := "2024-02-10"
	resp, err := h.svc.UpdateModel(ctx, gdddomain.UpdateModelRequest{
		ID:               modelID.String(),
		Threshold:        &threshold,
		ResetOnThreshold: &reset,
		EffectiveFrom:    &from,
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, resp.Threshold)
	assert.True(t, resp.ResetOnThreshold)

	history, err := h.svc.ListParameterHistory(ctx, modelID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-02-10", history[1].EffectiveFrom)
	assert.Equal(t, int64(1), h.countTasks(t, modelID))
}

func TestDeleteModel_RemovesOwnedRows(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)
	h.ConstantWeather(t, h.locationID(t), day(t, "2024-01-01"), 3, 20, 10)
	h.recalculate(t, modelID)

	require.NoError(t, h.svc.DeleteModel(ctx, modelID.String()))

	_, err := h.svc.GetModel(ctx, modelID.String())
	assert.ErrorIs(t, err, gdddomain.ErrModelNotFound)
	assert.Empty(t, h.resets(t, modelID))
	assert.Empty(t, h.values(t, modelID))

	var history int64
	require.NoError(t, h.DB.Raw(`SELECT COUNT(1) FROM gdd_parameter_history WHERE gdd_model_id = ?`, modelID).Scan(&history).Error)
	assert.Zero(t, history)
}

func TestListModels_FiltersByLawn(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	h.createModel(t, 0, false)
	h.createModel(t, 0, false)

	models, err := h.svc.ListModels(ctx, gdddomain.ListModelsRequest{LawnID: h.lawnID.String()})
	require.NoError(t, err)
	assert.Len(t, models, 2)

	other, err := h.svc.ListModels(ctx, gdddomain.ListModelsRequest{LawnID: h.GenID.Generate().String()})
	require.NoError(t, err)
	assert.Empty(t, other)

	ids, err := h.svc.ListModelIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestListValuesAndRuns(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 50, true)
	h.ConstantWeather(t, h.locationID(t), day(t, "2024-01-01"), 12, 20, 10)
	h.recalculate(t, modelID)

	run2, err := h.svc.ListValues(ctx, gdddomain.ListValuesRequest{ModelID: modelID.String(), Run: "2"})
	require.NoError(t, err)
	require.Len(t, run2, 2)
	assert.Equal(t, "2024-01-11", run2[0].Date)

	window, err := h.svc.ListValues(ctx, gdddomain.ListValuesRequest{ModelID: modelID.String(), From: "2024-01-03", To: "2024-01-05"})
	require.NoError(t, err)
	assert.Len(t, window, 3)

	_, err = h.svc.ListValues(ctx, gdddomain.ListValuesRequest{ModelID: modelID.String(), Run: "0"})
	assert.ErrorIs(t, err, gdddomain.ErrInvalidRun)
	_, err = h.svc.ListValues(ctx, gdddomain.ListValuesRequest{ModelID: modelID.String(), From: "2024-02-01", To: "2024-01-01"})
	assert.ErrorIs(t, err, gdddomain.ErrInvalidDateRange)

	runs, err := h.svc.ListRuns(ctx, modelID.String())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, gdddomain.RunSummary{
		Run:             1,
		ResetType:       gdddomain.ResetTypeInitial,
		StartDate:       "2024-01-01",
		EndDate:         "2024-01-10",
		Days:            10,
		FinalCumulative: testutil.Float(50),
	}, runs[0])
	assert.Equal(t, "2024-01-12", runs[1].EndDate)
	assert.Equal(t, 10.0, *runs[1].FinalCumulative)
}

func TestListRuns_IncludesRunsWithoutValues(t *testing.T) {
	h := newHarness(t, config.DefaultEngineConfig())
	ctx := testutil.Ctx(t)
	modelID := h.createModel(t, 0, false)
	_, err := h.svc.ManualReset(ctx, gdddomain.ManualResetRequest{ModelID: modelID.String(), Date: "2024-03-01"})
	require.NoError(t, err)

	runs, err := h.svc.ListRuns(ctx, modelID.String())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Zero(t, runs[1].Days)
	assert.Nil(t, runs[1].FinalCumulative)
	assert.Empty(t, runs[1].EndDate)
}
