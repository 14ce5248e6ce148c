package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/turfkeeper/internal/config"
	"github.com/smallbiznis/turfkeeper/internal/task/repository"
	"github.com/smallbiznis/turfkeeper/internal/task/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("task",
	fx.Provide(repository.Provide),
	fx.Provide(service.ProvideConfig),
	fx.Provide(service.NewEnqueuer),
	fx.Provide(service.New),
	fx.Provide(service.NewWorker),
	fx.Invoke(StartWorker),
	fx.Invoke(StartBackfill),
)

func StartWorker(lc fx.Lifecycle, cfg config.Config, worker *service.Worker) {
	if !cfg.RunsWorker() {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}

// StartBackfill schedules the nightly backfill when a cron schedule is configured.
func StartBackfill(lc fx.Lifecycle, cfg config.Config, taskCfg service.Config, worker *service.Worker, log *zap.Logger) error {
	if !cfg.RunsWorker() || taskCfg.BackfillSchedule == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(taskCfg.BackfillSchedule, func() {
		if err := worker.RunBackfill(ctx); err != nil {
			log.Warn("backfill failed", zap.Error(err))
		}
	})
	if err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			log.Info("backfill scheduled", zap.String("schedule", taskCfg.BackfillSchedule))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-c.Stop().Done():
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return nil
}
