package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     weatherdomain.Repository
	Enqueuer taskdomain.Enqueuer
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     weatherdomain.Repository
	enqueuer taskdomain.Enqueuer
	metrics  *obsmetrics.Metrics
}

func New(p Params) weatherdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("weather.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		enqueuer: p.Enqueuer,
		metrics:  p.Metrics,
	}
}

// Upsert writes a batch of daily records and queues a recalculation for
// every model whose lawn sits at the location. Both happen in one
// transaction so a committed batch always has its tasks.
func (s *Service) Upsert(ctx context.Context, req weatherdomain.UpsertRequest) (*weatherdomain.UpsertResponse, error) {
	locationID, err := weatherdomain.ParseID(strings.TrimSpace(req.LocationID))
	if err != nil || locationID == 0 {
		return nil, weatherdomain.ErrInvalidLocation
	}
	if len(req.Records) == 0 {
		return nil, weatherdomain.ErrEmptyRecords
	}
	if len(req.Records) > weatherdomain.MaxRecordsPerUpsert {
		return nil, weatherdomain.ErrTooManyRecords
	}

	ingestID := ulid.Make().String()
	now := time.Now().UTC()
	records, err := s.buildRecords(locationID, req.Records, ingestID, now)
	if err != nil {
		return nil, err
	}

	resp := &weatherdomain.UpsertResponse{IngestID: ingestID, RecordsWritten: len(records)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.LocationExists(ctx, tx, locationID)
		if err != nil {
			return err
		}
		if !exists {
			return weatherdomain.ErrLocationNotFound
		}
		if err := s.repo.Upsert(ctx, tx, records); err != nil {
			return err
		}

		modelIDs, err := s.repo.ModelIDsAtLocation(ctx, tx, locationID)
		if err != nil {
			return err
		}
		for _, modelID := range modelIDs {
			_, err := s.enqueuer.EnqueueRecalculation(ctx, tx, taskdomain.EnqueueRequest{
				ModelID: modelID,
				Reason:  taskdomain.ReasonWeatherIngested,
				Metadata: map[string]any{
					"ingest_id":   ingestID,
					"location_id": locationID.String(),
				},
			})
			if err != nil {
				return err
			}
		}
		resp.ModelsEnqueued = len(modelIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordIngest(ctx, records)
	s.log.Info("weather ingested",
		zap.String("location_id", locationID.String()),
		zap.String("ingest_id", ingestID),
		zap.Int("records", len(records)),
		zap.Int("models_enqueued", resp.ModelsEnqueued),
	)
	return resp, nil
}

func (s *Service) buildRecords(locationID snowflake.ID, inputs []weatherdomain.RecordInput, ingestID string, now time.Time) ([]weatherdomain.Record, error) {
	seen := make(map[time.Time]struct{}, len(inputs))
	records := make([]weatherdomain.Record, 0, len(inputs))
	for _, in := range inputs {
		date, err := gdddomain.ParseDate(in.Date)
		if err != nil {
			return nil, weatherdomain.ErrInvalidDate
		}
		if _, dup := seen[date]; dup {
			return nil, weatherdomain.ErrDuplicateDate
		}
		seen[date] = struct{}{}

		recordType, err := parseRecordType(in.Type)
		if err != nil {
			return nil, err
		}
		for _, v := range []*float64{in.TemperatureMaxC, in.TemperatureMinC, in.TemperatureMaxF, in.TemperatureMinF} {
			if !weatherdomain.ValidTemperature(v) {
				return nil, weatherdomain.ErrInvalidTemperature
			}
		}

		// derive whichever unit the caller left out
		maxC, minC := in.TemperatureMaxC, in.TemperatureMinC
		maxF, minF := in.TemperatureMaxF, in.TemperatureMinF
		if maxC == nil {
			maxC = weatherdomain.FahrenheitToCelsius(maxF)
		}
		if minC == nil {
			minC = weatherdomain.FahrenheitToCelsius(minF)
		}
		if maxF == nil {
			maxF = weatherdomain.CelsiusToFahrenheit(maxC)
		}
		if minF == nil {
			minF = weatherdomain.CelsiusToFahrenheit(minC)
		}

		records = append(records, weatherdomain.Record{
			ID:              s.genID.Generate(),
			LocationID:      locationID,
			Date:            date,
			TemperatureMaxC: maxC,
			TemperatureMinC: minC,
			TemperatureMaxF: maxF,
			TemperatureMinF: minF,
			Type:            recordType,
			IngestID:        ingestID,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return records, nil
}

func (s *Service) recordIngest(ctx context.Context, records []weatherdomain.Record) {
	if s.metrics == nil {
		return
	}
	counts := map[weatherdomain.RecordType]int{}
	for _, r := range records {
		counts[r.Type]++
	}
	for recordType, count := range counts {
		s.metrics.RecordWeatherIngest(ctx, string(recordType), count)
	}
}

func (s *Service) List(ctx context.Context, req weatherdomain.ListRequest) ([]weatherdomain.Response, error) {
	locationID, err := weatherdomain.ParseID(strings.TrimSpace(req.LocationID))
	if err != nil || locationID == 0 {
		return nil, weatherdomain.ErrInvalidLocation
	}
	from, err := gdddomain.ParseOptionalDate(req.From)
	if err != nil {
		return nil, weatherdomain.ErrInvalidDateRange
	}
	to, err := gdddomain.ParseOptionalDate(req.To)
	if err != nil {
		return nil, weatherdomain.ErrInvalidDateRange
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, weatherdomain.ErrInvalidDateRange
	}

	exists, err := s.repo.LocationExists(ctx, s.db, locationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, weatherdomain.ErrLocationNotFound
	}

	// the range is inclusive for callers; the repository bound is exclusive
	var upper *time.Time
	if to != nil {
		next := to.AddDate(0, 0, 1)
		upper = &next
	}
	records, err := s.repo.ListRange(ctx, s.db, locationID, from, upper)
	if err != nil {
		return nil, err
	}

	resp := make([]weatherdomain.Response, 0, len(records))
	for _, r := range records {
		resp = append(resp, weatherdomain.Response{
			Date:            gdddomain.Day(r.Date).Format(gdddomain.DateLayout),
			TemperatureMaxC: r.TemperatureMaxC,
			TemperatureMinC: r.TemperatureMinC,
			TemperatureMaxF: r.TemperatureMaxF,
			TemperatureMinF: r.TemperatureMinF,
			Type:            r.Type,
			IngestID:        r.IngestID,
		})
	}
	return resp, nil
}

func parseRecordType(value string) (weatherdomain.RecordType, error) {
	switch weatherdomain.RecordType(strings.ToLower(strings.TrimSpace(value))) {
	case "", weatherdomain.RecordTypeHistorical:
		return weatherdomain.RecordTypeHistorical, nil
	case weatherdomain.RecordTypeForecast:
		return weatherdomain.RecordTypeForecast, nil
	default:
		return "", weatherdomain.ErrInvalidRecordType
	}
}
