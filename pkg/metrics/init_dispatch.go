package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDispatchMetrics() {
	r.DispatchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foggy_dispatch_duration_seconds",
			Help:    "Time to sample one step's batch of walks",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"mode"},
	)

	r.DispatchJobs = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_dispatch_jobs_total",
			Help: "Walk jobs dispatched",
		},
		[]string{"mode"},
	)

	r.DispatchErrors = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_dispatch_errors_total",
			Help: "Failed dispatches",
		},
		[]string{"mode"},
	)

	r.RemoteWorkers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "foggy_remote_workers",
			Help: "Connected remote walk workers",
		},
	)
}

func (r *Registry) initResultsMetrics() {
	r.ResultsWrittenBytes = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_results_written_bytes_total",
			Help: "Compressed result bytes written, by sink",
		},
		[]string{"sink"},
	)

	r.ResultsSaveErrors = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_results_save_errors_total",
			Help: "Failed result saves, by sink",
		},
		[]string{"sink"},
	)
}
