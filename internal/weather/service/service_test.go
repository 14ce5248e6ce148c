package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	taskrepository "github.com/smallbiznis/turfkeeper/internal/task/repository"
	taskservice "github.com/smallbiznis/turfkeeper/internal/task/service"
	"github.com/smallbiznis/turfkeeper/internal/testutil"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"github.com/smallbiznis/turfkeeper/internal/weather/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*testutil.Fixture, weatherdomain.Service) {
	t.Helper()
	f := testutil.NewFixture(t)
	enqueuer := taskservice.NewEnqueuer(taskservice.EnqueuerParams{
		Log:   zap.NewNop(),
		GenID: f.GenID,
		Repo:  taskrepository.Provide(),
	})
	svc := New(Params{
		DB:       f.DB,
		Log:      zap.NewNop(),
		GenID:    f.GenID,
		Repo:     repository.Provide(),
		Enqueuer: enqueuer,
	})
	return f, svc
}

func TestUpsert_DerivesMissingUnit(t *testing.T) {
	f, svc := newTestService(t)
	ctx := testutil.Ctx(t)
	locationID := f.Location(t)

	resp, err := svc.Upsert(ctx, weatherdomain.UpsertRequest{
		LocationID: locationID.String(),
		Records: []weatherdomain.RecordInput{
			{Date: "2024-04-01", TemperatureMaxC: testutil.Float(20), TemperatureMinC: testutil.Float(10)},
			{Date: "2024-04-02", TemperatureMaxF: testutil.Float(77), TemperatureMinF: testutil.Float(59), Type: "forecast"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RecordsWritten)
	assert.Equal(t, 0, resp.ModelsEnqueued)
	assert.NotEmpty(t, resp.IngestID)

	got, err := svc.List(ctx, weatherdomain.ListRequest{LocationID: locationID.String()})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-04-01", got[0].Date)
	assert.Equal(t, weatherdomain.RecordTypeHistorical, got[0].Type)
	assert.InDelta(t, 68, *got[0].TemperatureMaxF, 1e-9)
	assert.InDelta(t, 50, *got[0].TemperatureMinF, 1e-9)

	assert.Equal(t, weatherdomain.RecordTypeForecast, got[1].Type)
	assert.InDelta(t, 25, *got[1].TemperatureMaxC, 1e-9)
	assert.InDelta(t, 15, *got[1].TemperatureMinC, 1e-9)
	assert.Equal(t, resp.IngestID, got[1].IngestID)
}

func TestUpsert_KeepsMissingReadingsNull(t *testing.T) {
	f, svc := newTestService(t)
	ctx := testutil.Ctx(t)
	locationID := f.Location(t)

	_, err := svc.Upsert(ctx, weatherdomain.UpsertRequest{
		LocationID: locationID.String(),
		Records:    []weatherdomain.RecordInput{{Date: "2024-04-01", TemperatureMaxC: testutil.Float(20)}},
	})
	require.NoError(t, err)

	got, err := svc.List(ctx, weatherdomain.ListRequest{LocationID: locationID.String()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].TemperatureMinC)
	assert.Nil(t, got[0].TemperatureMinF)
}

func TestUpsert_OverwritesSameDay(t *testing.T) {
	f, svc := newTestService(t)
	ctx := testutil.Ctx(t)
	locationID := f.Location(t)

	for _, max := range []float64{20, 24} {
		_, err := svc.Upsert(ctx, weatherdomain.UpsertRequest{
			LocationID: locationID.String(),
			Records: []weatherdomain.RecordInput{
				{Date: "2024-04-01", TemperatureMaxC: testutil.Float(max), TemperatureMinC: testutil.Float(10), Type: "forecast"},
			},
		})
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, weatherdomain.ListRequest{LocationID: locationID.String()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 24, *got[0].TemperatureMaxC, 1e-9)
}

func TestUpsert_EnqueuesModelsAtLocation(t *testing.T) {
	f, svc := newTestService(t)
	ctx := testutil.Ctx(t)
	locationID := f.Location(t)
	lawnA := f.Lawn(t, locationID)
	lawnB := f.Lawn(t, locationID)
	modelA := f.Model(t, lawnA, testutil.Date(t, "2024-01-01"))
	modelB := f.Model(t, lawnB, testutil.Date(t, "2024-01-01"))

	elsewhere := f.Model(t, f.Lawn(t, f.Location(t)), testutil.Date(t, "2024-01-01"))

	resp, err := svc.Upsert(ctx, weatherdomain.UpsertRequest{
		LocationID: locationID.String(),
		Records: []weatherdomain.RecordInput{
			{Date: "2024-04-01", TemperatureMaxC: testutil.Float(20), TemperatureMinC: testutil.Float(10)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ModelsEnqueued)

	for _, id := range []snowflake.ID{modelA, modelB} {
		var reason string
		require.NoError(t, f.DB.Raw(`SELECT reason FROM tasks WHERE gdd_model_id = ?`, id).Scan(&reason).Error)
		assert.Equal(t, taskdomain.ReasonWeatherIngested, reason)
	}
	var count int64
	require.NoError(t, f.DB.Raw(`SELECT COUNT(1) FROM tasks WHERE gdd_model_id = ?`, elsewhere).Scan(&count).Error)
	assert.Zero(t, count)
}

func TestUpsert_Validation(t *testing.T) {
	f, svc := newTestService(t)
	ctx := testutil.Ctx(t)
	locationID := f.Location(t).String()
	valid := weatherdomain.RecordInput{Date: "2024-04-01", TemperatureMaxC: testutil.Float(20), TemperatureMinC: testutil.Float(10)}

	tests := []struct {
		name string
		req  weatherdomain.UpsertRequest
		want error
	}{
		{"bad location", weatherdomain.UpsertRequest{LocationID: "x", Records: []weatherdomain.RecordInput{valid}}, weatherdomain.ErrInvalidLocation},
		{"unknown location", weatherdomain.UpsertRequest{LocationID: f.GenID.Generate().String(), Records: []weatherdomain.RecordInput{valid}}, weatherdomain.ErrLocationNotFound},
		{"empty", weatherdomain.UpsertRequest{LocationID: locationID}, weatherdomain.ErrEmptyRecords},
		{"bad date", weatherdomain.UpsertRequest{LocationID: locationID, Records: []weatherdomain.RecordInput{{Date: "04/01/2024"}}}, weatherdomain.ErrInvalidDate},
		{"duplicate", weatherdomain.UpsertRequest{LocationID: locationID, Records: []weatherdomain.RecordInput{valid, valid}}, weatherdomain.ErrDuplicateDate},
		{"bad type", weatherdomain.UpsertRequest{LocationID: locationID, Records: []weatherdomain.RecordInput{{Date: "2024-04-01", Type: "guess"}}}, weatherdomain.ErrInvalidRecordType},
		{"absurd temperature", weatherdomain.UpsertRequest{LocationID: locationID, Records: []weatherdomain.RecordInput{{Date: "2024-04-01", TemperatureMaxC: testutil.Float(500)}}}, weatherdomain.ErrInvalidTemperature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestList_InclusiveRange(t *testing.T) {
	f, svc := newTestService(t)
	ctx := testutil.Ctx(t)
	locationID := f.Location(t)
	f.ConstantWeather(t, locationID, testutil.Date(t, "2024-04-01"), 10, 20, 10)

	got, err := svc.List(ctx, weatherdomain.ListRequest{
		LocationID: locationID.String(),
		From:       "2024-04-03",
		To:         "2024-04-05",
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-04-03", got[0].Date)
	assert.Equal(t, "2024-04-05", got[2].Date)

	_, err = svc.List(ctx, weatherdomain.ListRequest{LocationID: locationID.String(), From: "2024-04-05", To: "2024-04-01"})
	assert.ErrorIs(t, err, weatherdomain.ErrInvalidDateRange)

	_, err = svc.List(ctx, weatherdomain.ListRequest{LocationID: f.GenID.Generate().String()})
	assert.ErrorIs(t, err, weatherdomain.ErrLocationNotFound)
}
