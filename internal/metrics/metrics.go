// Package metrics holds the Prometheus instruments for optimization runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coverga"

// RunMetrics groups the run counters, gauges and histograms. Build one per
// registry with New; a nil *RunMetrics is a valid no-op recorder.
type RunMetrics struct {
	// RunsStarted counts runs accepted by the coordinator.
	RunsStarted prometheus.Counter

	// RunsFinished counts runs by terminal status (completed, cancelled, failed).
	RunsFinished *prometheus.CounterVec

	GenerationsTotal prometheus.Counter

	RunDurationSeconds prometheus.Histogram

	ActiveRuns prometheus.Gauge

	// LastBestCost is the best cost reported by the most recently finished run.
	LastBestCost prometheus.Gauge
}

func New(reg prometheus.Registerer) *RunMetrics {
	factory := promauto.With(reg)
	return &RunMetrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "started_total",
			Help:      "Total number of optimization runs started",
		}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "finished_total",
			Help:      "Total number of optimization runs finished by status",
		}, []string{"status"}),
		GenerationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Total number of generations evolved across all runs",
		}),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of optimization runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "active",
			Help:      "Number of optimization runs currently executing",
		}),
		LastBestCost: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "last_best_cost",
			Help:      "Best cost reported by the most recently finished run",
		}),
	}
}

func (m *RunMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
	m.ActiveRuns.Inc()
}

func (m *RunMetrics) GenerationCompleted() {
	if m == nil {
		return
	}
	m.GenerationsTotal.Inc()
}

// RunFinished records a run leaving the active set. bestCost is ignored for
// failed runs.
func (m *RunMetrics) RunFinished(status string, seconds, bestCost float64) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.RunsFinished.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(seconds)
	if status != "failed" {
		m.LastBestCost.Set(bestCost)
	}
}
