package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for foggy. A nil *Registry is valid and
// records nothing, so library code can call the Record helpers
// unconditionally.
type Registry struct {
	// March Metrics
	MarchesTotal        *prometheus.CounterVec
	MarchDuration       *prometheus.HistogramVec
	StepsTotal          *prometheus.CounterVec
	WalkersTotal        *prometheus.CounterVec
	VisitsTotal         *prometheus.CounterVec
	RejectionsTotal     *prometheus.CounterVec
	BacklogSize         prometheus.Gauge
	BacklogDroppedTotal prometheus.Counter

	// Dispatch Metrics
	DispatchDuration *prometheus.HistogramVec
	DispatchJobs     *prometheus.CounterVec
	DispatchErrors   *prometheus.CounterVec
	RemoteWorkers    prometheus.Gauge

	// Results Metrics
	ResultsWrittenBytes *prometheus.CounterVec
	ResultsSaveErrors   *prometheus.CounterVec

	// Sweep Metrics
	RunsTotal      *prometheus.CounterVec
	RunsInProgress prometheus.Gauge
	RunDuration    *prometheus.HistogramVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.initMarchMetrics()
	r.initDispatchMetrics()
	r.initResultsMetrics()
	r.initSweepMetrics()
	r.initRuntimeMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
