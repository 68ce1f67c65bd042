package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initMarchMetrics() {
	r.MarchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_marches_total",
			Help: "Total number of marches run, by policy and outcome",
		},
		[]string{"policy", "status"},
	)

	r.MarchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foggy_march_duration_seconds",
			Help:    "Wall-clock duration of a march",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600, 3600},
		},
		[]string{"policy"},
	)

	r.StepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_steps_total",
			Help: "Time steps completed",
		},
		[]string{"policy"},
	)

	r.WalkersTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_walkers_total",
			Help: "Walkers dispatched, by origin (new or backlog)",
		},
		[]string{"policy", "origin"},
	)

	r.VisitsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_visits_total",
			Help: "Visits recorded as activity",
		},
		[]string{"policy"},
	)

	r.RejectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "foggy_rejections_total",
			Help: "Walkers turned away by a node at capacity",
		},
		[]string{"policy"},
	)

	r.BacklogSize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "foggy_backlog_size",
			Help: "Walkers waiting in the buffered backlog after the last step",
		},
	)

	r.BacklogDroppedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "foggy_backlog_dropped_total",
			Help: "Backlog walkers removed by the backlog bound",
		},
	)
}
