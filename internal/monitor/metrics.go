package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors the monitor updates.
type Metrics struct {
	// Executions counts ended executions by purpose and terminal state.
	Executions *prometheus.CounterVec
	// Duration is the run time of ended executions.
	Duration *prometheus.HistogramVec
	// Running is the number of executions started but not ended.
	Running prometheus.Gauge
	// Dropped counts records the execution log could not keep up with.
	Dropped prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cubist_executions_total",
				Help: "Total number of ended executions",
			},
			[]string{"purpose", "state"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cubist_execution_duration_seconds",
				Help:    "Execution run time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"purpose"},
		),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Name: "cubist_executions_running",
			Help: "Executions started and not yet ended",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "cubist_execution_log_dropped_total",
			Help: "Execution log records dropped because the write queue was full",
		}),
	}
}
