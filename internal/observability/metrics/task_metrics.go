package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	"github.com/smallbiznis/turfkeeper/internal/lock"
	"gorm.io/gorm"
)

const (
	TaskErrorTypeDeadlineExceeded = "deadline_exceeded"
	TaskErrorTypeBusinessRule     = "business_rule"
	TaskErrorTypeDB               = "db"
	TaskErrorTypeUnknown          = "unknown"
)

const (
	TaskJobReasonDeadlineExceeded     = "deadline_exceeded"
	TaskJobReasonDBLockTimeout        = "db_lock_timeout"
	TaskJobReasonSerializationFailure = "serialization_failure"
	TaskJobReasonUniqueViolation      = "unique_violation"
	TaskJobReasonReentrancyLimit      = "reentrancy_limit"
	TaskJobReasonModelNotFound        = "model_not_found"
	TaskJobReasonLockTimeout          = "lock_timeout"
	TaskJobReasonUnknown              = "unknown"

	TaskBatchDeferredReasonClaimLost = "claim_lost"
	TaskBatchDeferredReasonCoalesced = "coalesced"
)

const (
	ClaimResourcePendingTasks = "pending_tasks"
	ClaimResourceStaleTasks   = "stale_tasks"
)

// TaskMetrics captures background task worker health.
type TaskMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	runLoopLag     prometheus.Observer
	claimWait      *prometheus.HistogramVec
	claimObservers map[string]prometheus.Observer
}

var (
	taskMetricsOnce sync.Once
	taskMetrics     *TaskMetrics
)

// Tasks returns the singleton task metrics registry.
func Tasks() *TaskMetrics {
	return TasksWithConfig(Config{})
}

// TasksWithConfig returns the singleton task metrics registry using config labels.
func TasksWithConfig(cfg Config) *TaskMetrics {
	taskMetricsOnce.Do(func() {
		taskMetrics = newTaskMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return taskMetrics
}

// ResetTaskMetricsForTest resets the task metrics singleton for tests.
func ResetTaskMetricsForTest() {
	taskMetricsOnce = sync.Once{}
	taskMetrics = nil
}

func constLabels(cfg Config) prometheus.Labels {
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName(cfg.ServiceName),
		"env":     environment,
	}
}

func newTaskMetrics(registerer prometheus.Registerer, cfg Config) *TaskMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turfkeeper_task_job_runs_total",
		Help:        "Task worker job runs by name.",
		ConstLabels: labels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "turfkeeper_task_job_duration_seconds",
		Help:        "Task worker job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: labels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turfkeeper_task_job_timeouts_total",
		Help:        "Task worker job timeouts.",
		ConstLabels: labels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turfkeeper_task_job_errors_total",
		Help:        "Task worker job errors by low-cardinality reason.",
		ConstLabels: labels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turfkeeper_task_batch_processed_total",
		Help:        "Items processed by task worker jobs.",
		ConstLabels: labels,
	}, []string{"job", "resource"})
	batchDeferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turfkeeper_task_batch_deferred_total",
		Help:        "Task worker deferrals by low-cardinality reason.",
		ConstLabels: labels,
	}, []string{"job", "reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "turfkeeper_task_runloop_lag_seconds",
		Help:        "Task worker run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: labels,
	})
	claimWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "turfkeeper_task_claim_wait_seconds",
		Help:        "Time spent selecting and claiming task rows.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: labels,
	}, []string{"resource"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		batchDeferred,
		runLoopLag,
		claimWait,
	)

	return &TaskMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		batchProcessed: batchProcessed,
		batchDeferred:  batchDeferred,
		runLoopLag:     runLoopLag,
		claimWait:      claimWait,
		claimObservers: map[string]prometheus.Observer{
			ClaimResourcePendingTasks: claimWait.WithLabelValues(ClaimResourcePendingTasks),
			ClaimResourceStaleTasks:   claimWait.WithLabelValues(ClaimResourceStaleTasks),
		},
	}
}

// IncJobRun increments the run counter for a job.
func (m *TaskMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records job latency in seconds.
func (m *TaskMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the job.
func (m *TaskMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the job error counter with classification.
func (m *TaskMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyTaskJobReason(err)).Inc()
}

// AddBatchProcessed increments the processed counter for a resource by count.
func (m *TaskMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// IncBatchDeferred increments the deferred counter for a job and reason.
func (m *TaskMetrics) IncBatchDeferred(job, reason string) {
	if m == nil {
		return
	}
	m.batchDeferred.WithLabelValues(job, reason).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *TaskMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// ObserveClaimWait records how long selecting and claiming rows took.
func (m *TaskMetrics) ObserveClaimWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.claimObservers[resource]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.claimWait.WithLabelValues(resource).Observe(duration.Seconds())
}

// ClassifyTaskErrorType returns a low-cardinality error type for logging.
func ClassifyTaskErrorType(err error) string {
	if err == nil {
		return TaskErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TaskErrorTypeDeadlineExceeded
	}
	if isDBError(err) {
		return TaskErrorTypeDB
	}
	return TaskErrorTypeBusinessRule
}

// IsTaskErrorRetryable reports whether a failed task should be attempted again.
func IsTaskErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gdddomain.ErrReentrancyLimit) ||
		errors.Is(err, gdddomain.ErrModelNotFound) ||
		errors.Is(err, gdddomain.ErrNoResets) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, lock.ErrNotAcquired) {
		return true
	}
	return isDBError(err)
}

// ClassifyTaskJobReason maps job errors to low-cardinality reasons.
func ClassifyTaskJobReason(err error) string {
	switch {
	case err == nil:
		return TaskJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return TaskJobReasonDeadlineExceeded
	case errors.Is(err, gdddomain.ErrReentrancyLimit):
		return TaskJobReasonReentrancyLimit
	case errors.Is(err, gdddomain.ErrModelNotFound):
		return TaskJobReasonModelNotFound
	case errors.Is(err, lock.ErrNotAcquired):
		return TaskJobReasonLockTimeout
	case hasPGCode(err, "55P03"):
		return TaskJobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return TaskJobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return TaskJobReasonUniqueViolation
	default:
		return TaskJobReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrInvalidValue) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
