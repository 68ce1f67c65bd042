package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSweepMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_runs_total",
			Help: "Finished sweep runs by policy and status",
		},
		[]string{"policy", "status"},
	)

	r.RunsInProgress = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "foggy_runs_in_progress",
			Help: "Sweep runs currently marching or saving",
		},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foggy_run_duration_seconds",
			Help:    "Wall time of a sweep run including saving its results",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"policy"},
	)
}

func (r *Registry) initRuntimeMetrics() {
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
