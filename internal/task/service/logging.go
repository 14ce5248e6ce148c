package service

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/turfkeeper/internal/observability/context"
	obslogger "github.com/smallbiznis/turfkeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	"go.uber.org/zap"
)

type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	mu             sync.Mutex
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.mu.Lock()
	r.processedCount += count
	r.mu.Unlock()
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.errorCount++
	r.mu.Unlock()
}

func (r *jobRun) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processedCount, r.errorCount
}

func (w *Worker) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     w.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "task.worker")
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (w *Worker) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, w.log)
}

func (w *Worker) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	w.logger(ctx).Debug("task.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (w *Worker) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	processed, errored := run.counts()
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", processed),
		zap.Int("error_count", errored),
	}
	log := w.logger(ctx)
	switch {
	case errored > 0:
		log.Warn("task.job.finish", fields...)
	case processed > 0:
		log.Info("task.job.finish", fields...)
	default:
		log.Debug("task.job.finish", fields...)
	}
}

func (w *Worker) logTaskError(ctx context.Context, run *jobRun, msg string, taskID snowflake.ID, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.IncError()
	}
	baseFields := []zap.Field{
		zap.String("task_id", taskID.String()),
		zap.String("error_type", obsmetrics.ClassifyTaskErrorType(err)),
		zap.String("reason", obsmetrics.ClassifyTaskJobReason(err)),
		zap.String("error", err.Error()),
		zap.Bool("retryable", obsmetrics.IsTaskErrorRetryable(err)),
	}
	w.logger(ctx).Error(msg, append(baseFields, fields...)...)
}
