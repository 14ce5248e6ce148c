package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"github.com/smallbiznis/turfkeeper/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EnqueuerParams struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    taskdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Enqueuer struct {
	log     *zap.Logger
	genID   *snowflake.Node
	repo    taskdomain.Repository
	metrics *obsmetrics.Metrics
}

func NewEnqueuer(p EnqueuerParams) taskdomain.Enqueuer {
	return &Enqueuer{
		log:     p.Log.Named("task.enqueuer"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// EnqueueRecalculation coalesces with a pending task for the same model, so
// a burst of edits yields a single recalculation.
func (e *Enqueuer) EnqueueRecalculation(ctx context.Context, tx *gorm.DB, req taskdomain.EnqueueRequest) (*taskdomain.Task, error) {
	existing, err := e.repo.FindPendingForModel(ctx, tx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		obsmetrics.Tasks().IncBatchDeferred(jobEnqueue, obsmetrics.TaskBatchDeferredReasonCoalesced)
		e.log.Debug("recalculation coalesced",
			zap.String("gdd_model_id", req.ModelID.String()),
			zap.String("task_id", existing.ID.String()),
			zap.String("reason", req.Reason),
		)
		return existing, nil
	}

	now := time.Now().UTC()
	modelID := req.ModelID
	task := &taskdomain.Task{
		ID:         e.genID.Generate(),
		Kind:       taskdomain.KindGDDRecalculate,
		GDDModelID: &modelID,
		Reason:     req.Reason,
		Status:     taskdomain.StatusPending,
		Metadata:   datatypes.JSONMap(req.Metadata),
		RunAfter:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// savepoint keeps the caller's transaction usable if a concurrent
	// enqueue won the pending slot
	err = tx.Transaction(func(sp *gorm.DB) error {
		return e.repo.Insert(ctx, sp, task)
	})
	if err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		existing, findErr := e.repo.FindPendingForModel(ctx, tx, req.ModelID)
		if findErr != nil || existing == nil {
			return nil, err
		}
		obsmetrics.Tasks().IncBatchDeferred(jobEnqueue, obsmetrics.TaskBatchDeferredReasonCoalesced)
		return existing, nil
	}

	if e.metrics != nil {
		e.metrics.RecordTaskEnqueued(ctx, string(task.Kind), task.Reason)
	}
	e.log.Info("recalculation enqueued",
		zap.String("gdd_model_id", req.ModelID.String()),
		zap.String("task_id", task.ID.String()),
		zap.String("reason", req.Reason),
	)
	return task, nil
}
