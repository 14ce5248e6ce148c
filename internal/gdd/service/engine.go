package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/smallbiznis/turfkeeper/internal/gdd/accumulate"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	obslogger "github.com/smallbiznis/turfkeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	"github.com/smallbiznis/turfkeeper/internal/observability/tracing"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/smallbiznis/turfkeeper/internal/gdd"

type EngineParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    gdddomain.Repository
	Weather weatherdomain.Repository
	Locker  lock.Locker
	Config  *config.EngineConfigHolder `optional:"true"`
}

// Engine rebuilds value series. Each call replaces every value of the
// model inside one transaction, looping until no new threshold reset
// appears.
type Engine struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    gdddomain.Repository
	weather weatherdomain.Repository
	locker  lock.Locker
	cfg     *config.EngineConfigHolder
	tracer  trace.Tracer
}

func NewEngine(p EngineParams) gdddomain.Engine {
	return &Engine{
		db:      p.DB,
		log:     p.Log.Named("gdd.engine"),
		genID:   p.GenID,
		repo:    p.Repo,
		weather: p.Weather,
		locker:  p.Locker,
		cfg:     p.Config,
		tracer:  otel.Tracer(tracerName),
	}
}

// RecalculateModel resolves the model's location through its lawn.
func (e *Engine) RecalculateModel(ctx context.Context, modelID snowflake.ID) (int, error) {
	locationID, err := e.repo.LocationIDForModel(ctx, e.db, modelID)
	if err != nil {
		return 0, err
	}
	if locationID == 0 {
		return 0, gdddomain.ErrModelNotFound
	}
	return e.Recalculate(ctx, modelID, locationID)
}

// Recalculate returns the number of values written by the final pass.
func (e *Engine) Recalculate(ctx context.Context, modelID, locationID snowflake.ID) (rows int, err error) {
	cfg := e.cfg.Get()
	engineMetrics := obsmetrics.Engine()
	started := time.Now()
	passes := 0

	ctx, span := e.tracer.Start(ctx, "gdd.recalculate", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("gdd.model_id", modelID.String()),
		attribute.String("gdd.location_id", locationID.String()),
	)...))
	defer func() {
		span.SetAttributes(attribute.Int("gdd.passes", passes), attribute.Int("gdd.rows", rows))
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "recalculation failed")
		}
		span.End()
		engineMetrics.ObserveRecalculation(passes, rows, time.Since(started), err)
	}()

	log := obslogger.WithModel(obslogger.WithContext(ctx, e.log), modelID.String())

	waitStart := time.Now()
	release, err := e.locker.Acquire(ctx, lock.RecalcKey(modelID.String()), cfg.LockTTL, cfg.LockWait)
	engineMetrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		return 0, fmt.Errorf("acquire recalculation lock: %w", err)
	}
	defer func() {
		if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
			log.Warn("release recalculation lock failed", zap.Error(releaseErr))
		}
	}()

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := e.repo.FindModel(ctx, tx, modelID)
		if err != nil {
			return err
		}
		if model == nil {
			return gdddomain.ErrModelNotFound
		}
		history, err := e.repo.ListParameterHistory(ctx, tx, modelID)
		if err != nil {
			return err
		}
		resolver := accumulate.NewHistory(history, model.Parameters())

		limit := 0
		for {
			resets, err := e.repo.ListResets(ctx, tx, modelID)
			if err != nil {
				return err
			}
			if len(resets) == 0 {
				return gdddomain.ErrNoResets
			}
			if limit == 0 {
				// every extra pass consumes at least one weather day
				first := resets[0].ResetDate
				weatherRows, err := e.weather.Count(ctx, tx, locationID, &first)
				if err != nil {
					return err
				}
				limit = passLimit(cfg.MaxPasses, weatherRows)
			}

			passes++
			result, err := e.pass(ctx, tx, model, locationID, resets, resolver, cfg.InsertBatchSize)
			if err != nil {
				return err
			}
			rows = result.rows
			if result.crossing == nil {
				return nil
			}
			if passes >= limit {
				log.Error("recalculation did not converge",
					zap.Int("passes", passes),
					zap.Int("limit", limit),
					zap.Float64("last_cumulative", result.lastCumulative),
				)
				return gdddomain.ErrReentrancyLimit
			}

			if err := e.insertThresholdReset(ctx, tx, modelID, *result.crossing); err != nil {
				return err
			}
			engineMetrics.IncThresholdReset()
		}
	})
	if err != nil {
		return 0, err
	}

	log.Debug("recalculation complete",
		zap.Int("passes", passes),
		zap.Int("rows", rows),
		zap.Duration("elapsed", time.Since(started)),
	)
	return rows, nil
}

// passLimit bounds the fixed point by the weather window. A positive
// maxPasses only tightens it.
func passLimit(maxPasses int, weatherRows int64) int {
	limit := int(weatherRows) + 1
	if maxPasses > 0 && maxPasses < limit {
		return maxPasses
	}
	return limit
}

type passResult struct {
	rows           int
	crossing       *time.Time
	lastCumulative float64
}

// pass replaces every value of the model from the current ledger.
func (e *Engine) pass(
	ctx context.Context,
	tx *gorm.DB,
	model *gdddomain.Model,
	locationID snowflake.ID,
	resets []gdddomain.Reset,
	resolver accumulate.Resolver,
	batchSize int,
) (passResult, error) {
	var res passResult
	if err := e.repo.DeleteValues(ctx, tx, model.ID); err != nil {
		return res, err
	}

	segments := accumulate.Segments(resets)
	for i, seg := range segments {
		from := seg.Start
		var to *time.Time
		if !seg.Open {
			next := segments[i+1].Start
			to = &next
		}
		records, err := e.weather.ListRange(ctx, tx, locationID, &from, to)
		if err != nil {
			return res, err
		}

		out := accumulate.Run(seg, toReadings(records, model.Unit), resolver)
		values := e.toValues(model.ID, out.Points)
		if err := e.repo.InsertValues(ctx, tx, values, batchSize); err != nil {
			return res, err
		}
		res.rows += len(values)
		res.lastCumulative = out.Cumulative
		if out.Crossing != nil {
			res.crossing = out.Crossing
		}
	}
	return res, nil
}

func (e *Engine) insertThresholdReset(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, crossing time.Time) error {
	maxRun, err := e.repo.MaxRunNumber(ctx, tx, modelID)
	if err != nil {
		return err
	}
	reset := &gdddomain.Reset{
		ID:         e.genID.Generate(),
		GDDModelID: modelID,
		ResetDate:  crossing.AddDate(0, 0, 1),
		RunNumber:  maxRun + 1,
		ResetType:  gdddomain.ResetTypeThreshold,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.repo.InsertReset(ctx, tx, reset); err != nil {
		return err
	}
	e.log.Info("threshold reset inserted",
		zap.String("gdd_model_id", modelID.String()),
		zap.String("reset_date", reset.ResetDate.Format(gdddomain.DateLayout)),
		zap.Int("run_number", reset.RunNumber),
	)
	return nil
}

func toReadings(records []weatherdomain.Record, unit gdddomain.Unit) []accumulate.Reading {
	readings := make([]accumulate.Reading, 0, len(records))
	for _, r := range records {
		tmax, tmin := r.Temperatures(string(unit))
		readings = append(readings, accumulate.Reading{
			Date:     gdddomain.Day(r.Date),
			Max:      tmax,
			Min:      tmin,
			Forecast: r.IsForecast(),
		})
	}
	return readings
}

func (e *Engine) toValues(modelID snowflake.ID, points []accumulate.Point) []gdddomain.Value {
	now := time.Now().UTC()
	values := make([]gdddomain.Value, 0, len(points))
	for _, p := range points {
		values = append(values, gdddomain.Value{
			ID:            e.genID.Generate(),
			GDDModelID:    modelID,
			Date:          p.Date,
			DailyGDD:      p.Daily,
			CumulativeGDD: p.Cumulative,
			IsForecast:    p.Forecast,
			Run:           p.Run,
			CreatedAt:     now,
		})
	}
	return values
}
