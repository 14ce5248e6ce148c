package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	obscontext "github.com/smallbiznis/turfkeeper/internal/observability/context"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	jobEnqueue       = "enqueue"
	jobRecoverStale  = "recover_stale"
	jobRecalculate   = "recalculate"
	jobBackfill      = "backfill"
	maxErrorTextSize = 1024
)

var ErrInvalidConfig = errors.New("invalid_task_worker_config")

type WorkerParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     taskdomain.Repository
	Enqueuer taskdomain.Enqueuer
	Engine   gdddomain.Engine
	Models   gdddomain.Service
	Config   Config `optional:"true"`
}

// Worker drains pending tasks and runs the periodic maintenance jobs.
type Worker struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	repo     taskdomain.Repository
	enqueuer taskdomain.Enqueuer
	engine   gdddomain.Engine
	models   gdddomain.Service
}

func NewWorker(p WorkerParams) (*Worker, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Repo == nil || p.Enqueuer == nil || p.Engine == nil || p.Models == nil {
		return nil, ErrInvalidConfig
	}
	return &Worker{
		db:       p.DB,
		log:      p.Log.Named("task.worker").With(zap.String("component", "task_worker")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		enqueuer: p.Enqueuer,
		engine:   p.Engine,
		models:   p.Models,
	}, nil
}

func (w *Worker) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := w.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := w.ensureJobRun(ctx, name, batchSize)
	if owner {
		w.logJobStart(ctx, run)
	}
	taskMetrics := obsmetrics.Tasks()
	taskMetrics.IncJobRun(name)

	err := fn(ctx)
	taskMetrics.ObserveJobDuration(name, w.clock.Now().Sub(start))
	if owner {
		if _, errored := run.counts(); err != nil && errored == 0 {
			run.IncError()
		}
		w.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		taskMetrics.IncJobTimeout(name)
	}
	taskMetrics.IncJobError(name, err)
	if isTimeout {
		w.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs one poll: stale recovery, then one batch of pending tasks.
func (w *Worker) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, w.runJob(parent, jobRecoverStale, 0, 30*time.Second, w.RecoverStaleJob))

	// the batch may run up to ceil(batch/concurrency) tasks back to back
	rounds := (w.cfg.BatchSize + w.cfg.Concurrency - 1) / w.cfg.Concurrency
	timeout := time.Duration(rounds)*w.cfg.TaskTimeout + 30*time.Second
	err = errors.Join(err, w.runJob(parent, jobRecalculate, w.cfg.BatchSize, timeout, w.ProcessPendingJob))
	return err
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	nextRun := w.clock.Now().Add(w.cfg.PollInterval)
	taskMetrics := obsmetrics.Tasks()

	for {
		runLag := w.clock.Now().Sub(nextRun)
		if runLag > 0 {
			taskMetrics.ObserveRunLoopLag(runLag)
		}
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("task worker run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(w.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RecoverStaleJob re-queues tasks whose worker vanished mid-run.
func (w *Worker) RecoverStaleJob(ctx context.Context) error {
	_, run, _ := w.ensureJobRun(ctx, jobRecoverStale, 0)
	now := w.clock.Now()

	start := time.Now()
	recovered, err := w.repo.RecoverStale(ctx, w.db, now.Add(-w.cfg.RecoveryThreshold), now)
	obsmetrics.Tasks().ObserveClaimWait(obsmetrics.ClaimResourceStaleTasks, time.Since(start))
	if err != nil {
		return err
	}
	if recovered > 0 {
		run.AddProcessed(int(recovered))
		obsmetrics.Tasks().AddBatchProcessed(jobRecoverStale, obsmetrics.ClaimResourceStaleTasks, int(recovered))
		w.logger(ctx).Warn("stale tasks recovered", zap.Int64("count", recovered))
	}
	return nil
}

// ProcessPendingJob claims up to BatchSize due tasks and executes them with
// bounded concurrency.
func (w *Worker) ProcessPendingJob(ctx context.Context) error {
	ctx, run, _ := w.ensureJobRun(ctx, jobRecalculate, w.cfg.BatchSize)
	taskMetrics := obsmetrics.Tasks()

	start := time.Now()
	tasks, err := w.repo.ListClaimable(ctx, w.db, w.clock.Now(), w.cfg.BatchSize)
	taskMetrics.ObserveClaimWait(obsmetrics.ClaimResourcePendingTasks, time.Since(start))
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for i := range tasks {
		task := tasks[i]
		g.Go(func() error {
			return w.process(ctx, run, task)
		})
	}
	return g.Wait()
}

func (w *Worker) process(ctx context.Context, run *jobRun, task taskdomain.Task) error {
	claimed, err := w.repo.Claim(ctx, w.db, task.ID, w.clock.Now())
	if err != nil {
		return err
	}
	if !claimed {
		obsmetrics.Tasks().IncBatchDeferred(jobRecalculate, obsmetrics.TaskBatchDeferredReasonClaimLost)
		return nil
	}
	task.Attempts++

	if task.GDDModelID == nil {
		return w.repo.MarkFailed(ctx, w.db, task.ID, "task has no gdd model", w.clock.Now())
	}
	modelID := *task.GDDModelID

	taskCtx, cancel := context.WithTimeout(obscontext.WithModelID(ctx, modelID.String()), w.cfg.TaskTimeout)
	rows, runErr := w.engine.RecalculateModel(taskCtx, modelID)
	cancel()

	// status writes must land even when the job context ran out
	writeCtx := context.WithoutCancel(ctx)
	now := w.clock.Now()
	if runErr == nil {
		run.AddProcessed(1)
		obsmetrics.Tasks().AddBatchProcessed(jobRecalculate, "gdd_models", 1)
		w.logger(taskCtx).Info("recalculation finished",
			zap.String("task_id", task.ID.String()),
			zap.String("reason", task.Reason),
			zap.Int("rows_written", rows),
			zap.Int("attempt", task.Attempts),
		)
		return w.repo.MarkSucceeded(writeCtx, w.db, task.ID, rows, now)
	}

	w.logTaskError(taskCtx, run, "task.recalculate.failed", task.ID, runErr,
		zap.String("gdd_model_id", modelID.String()),
		zap.Int("attempt", task.Attempts),
	)
	message := truncateError(runErr)
	if obsmetrics.IsTaskErrorRetryable(runErr) && task.Attempts < w.cfg.MaxAttempts {
		backoff := w.cfg.RetryBackoff * time.Duration(1<<(task.Attempts-1))
		return w.repo.Requeue(writeCtx, w.db, task.ID, message, now.Add(backoff), now)
	}
	return w.repo.MarkFailed(writeCtx, w.db, task.ID, message, now)
}

// BackfillJob enqueues a recalculation for every model so forecast days
// roll into history overnight.
func (w *Worker) BackfillJob(ctx context.Context) error {
	_, run, _ := w.ensureJobRun(ctx, jobBackfill, 0)

	ids, err := w.models.ListModelIDs(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	for _, id := range ids {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		_, err := w.enqueuer.EnqueueRecalculation(ctx, w.db, taskdomain.EnqueueRequest{
			ModelID: id,
			Reason:  taskdomain.ReasonBackfill,
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			w.logTaskError(ctx, run, "task.backfill.enqueue_failed", 0, err, zap.String("gdd_model_id", id.String()))
			continue
		}
		run.AddProcessed(1)
	}
	obsmetrics.Tasks().AddBatchProcessed(jobBackfill, "gdd_models", len(ids))
	return jobErr
}

// RunBackfill wraps BackfillJob with job logging and metrics.
func (w *Worker) RunBackfill(ctx context.Context) error {
	return w.runJob(ctx, jobBackfill, 0, 5*time.Minute, w.BackfillJob)
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorTextSize {
		return msg[:maxErrorTextSize]
	}
	return msg
}
