package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RecalculationResultOK    = "ok"
	RecalculationResultError = "error"
)

// EngineMetrics captures GDD recalculation behaviour.
type EngineMetrics struct {
	recalculations  *prometheus.CounterVec
	duration        prometheus.Observer
	passes          prometheus.Observer
	thresholdResets prometheus.Counter
	valuesWritten   prometheus.Counter
	lockWait        prometheus.Observer
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton engine metrics registry.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

// EngineWithConfig returns the singleton engine metrics registry using config labels.
func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

// ResetEngineMetricsForTest resets the engine metrics singleton for tests.
func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	recalculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "turfkeeper_gdd_recalculations_total",
		Help:        "GDD recalculations by result and reason.",
		ConstLabels: labels,
	}, []string{"result", "reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "turfkeeper_gdd_recalculation_duration_seconds",
		Help:        "Wall time of a full GDD recalculation including every pass.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: labels,
	})
	passes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "turfkeeper_gdd_recalculation_passes",
		Help:        "Passes needed to reach a fixed point.",
		Buckets:     []float64{1, 2, 3, 4, 6, 8, 12, 16, 32, 64},
		ConstLabels: labels,
	})
	thresholdResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "turfkeeper_gdd_threshold_resets_total",
		Help:        "Threshold resets discovered by the engine.",
		ConstLabels: labels,
	})
	valuesWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "turfkeeper_gdd_values_written_total",
		Help:        "GDD value rows written by final passes.",
		ConstLabels: labels,
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "turfkeeper_gdd_lock_wait_seconds",
		Help:        "Time spent waiting for the per-model recalculation lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		ConstLabels: labels,
	})

	registerer.MustRegister(recalculations, duration, passes, thresholdResets, valuesWritten, lockWait)

	return &EngineMetrics{
		recalculations:  recalculations,
		duration:        duration,
		passes:          passes,
		thresholdResets: thresholdResets,
		valuesWritten:   valuesWritten,
		lockWait:        lockWait,
	}
}

// ObserveRecalculation records the outcome of one Recalculate call.
func (m *EngineMetrics) ObserveRecalculation(passes, rows int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.recalculations.WithLabelValues(RecalculationResultError, ClassifyTaskJobReason(err)).Inc()
		return
	}
	m.recalculations.WithLabelValues(RecalculationResultOK, "").Inc()
	m.passes.Observe(float64(passes))
	if rows > 0 {
		m.valuesWritten.Add(float64(rows))
	}
}

// IncThresholdReset counts a threshold reset inserted by the engine.
func (m *EngineMetrics) IncThresholdReset() {
	if m == nil {
		return
	}
	m.thresholdResets.Inc()
}

// ObserveLockWait records how long the engine waited for the model lock.
func (m *EngineMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}
