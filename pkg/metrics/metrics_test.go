package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.MarchesTotal == nil || r.DispatchDuration == nil || r.BacklogSize == nil || r.RunsTotal == nil {
		t.Fatal("metrics not initialized")
	}
	if r.GetPrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordMarch(t *testing.T) {
	r := NewRegistry()
	r.RecordMarch("deletory", StatusOK, 2*time.Second)
	r.RecordMarch("deletory", StatusOK, time.Second)
	r.RecordMarch("deletory", StatusCancelled, time.Millisecond)

	if got := counterValue(t, r.MarchesTotal.WithLabelValues("deletory", StatusOK)); got != 2 {
		t.Errorf("ok marches = %v, want 2", got)
	}
	if got := counterValue(t, r.MarchesTotal.WithLabelValues("deletory", StatusCancelled)); got != 1 {
		t.Errorf("cancelled marches = %v, want 1", got)
	}

	var metric dto.Metric
	if err := r.MarchDuration.WithLabelValues("deletory").(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatal(err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("duration samples = %d, want 3", metric.Histogram.GetSampleCount())
	}
}

func TestRecordStep(t *testing.T) {
	r := NewRegistry()
	r.RecordStep("buffered", 10, 3, 42, 5)
	r.RecordStep("buffered", 10, 0, 40, 0)

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"steps", r.StepsTotal.WithLabelValues("buffered"), 2},
		{"new", r.WalkersTotal.WithLabelValues("buffered", OriginNew), 20},
		{"backlog", r.WalkersTotal.WithLabelValues("buffered", OriginBacklog), 3},
		{"visits", r.VisitsTotal.WithLabelValues("buffered"), 82},
		{"rejections", r.RejectionsTotal.WithLabelValues("buffered"), 5},
	}
	for _, tt := range tests {
		if got := counterValue(t, tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRecordBacklog(t *testing.T) {
	r := NewRegistry()
	r.RecordBacklog(12, 0)
	r.RecordBacklog(7, 4)

	if got := gaugeValue(t, r.BacklogSize); got != 7 {
		t.Errorf("backlog size = %v, want 7", got)
	}
	if got := counterValue(t, r.BacklogDroppedTotal); got != 4 {
		t.Errorf("dropped = %v, want 4", got)
	}
}

func TestRecordDispatch(t *testing.T) {
	r := NewRegistry()
	r.RecordDispatch("direct", 100, time.Millisecond, nil)
	r.RecordDispatch("direct", 50, time.Millisecond, errors.New("boom"))

	if got := counterValue(t, r.DispatchJobs.WithLabelValues("direct")); got != 150 {
		t.Errorf("jobs = %v, want 150", got)
	}
	if got := counterValue(t, r.DispatchErrors.WithLabelValues("direct")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestRecordResults(t *testing.T) {
	r := NewRegistry()
	r.RecordResults("file", 2048, nil)
	r.RecordResults("s3", 0, errors.New("denied"))

	if got := counterValue(t, r.ResultsWrittenBytes.WithLabelValues("file")); got != 2048 {
		t.Errorf("bytes = %v, want 2048", got)
	}
	if got := counterValue(t, r.ResultsSaveErrors.WithLabelValues("s3")); got != 1 {
		t.Errorf("save errors = %v, want 1", got)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	r.RecordMarch("unconstrained", StatusOK, time.Second)
	r.RecordStep("unconstrained", 1, 0, 1, 0)
	r.RecordBacklog(1, 1)
	r.RecordDispatch("direct", 1, time.Second, nil)
	r.SetRemoteWorkers(2)
	r.RecordResults("file", 1, nil)
	r.RunStarted()
	r.RunFinished("buffered", StatusOK, time.Second)
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordMarch("unconstrained", StatusOK, time.Second)
	r.SetRemoteWorkers(3)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`foggy_marches_total{policy="unconstrained",status="ok"} 1`,
		"foggy_remote_workers 3",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestRunMetrics(t *testing.T) {
	r := NewRegistry()
	r.RunStarted()
	r.RunStarted()
	if got := gaugeValue(t, r.RunsInProgress); got != 2 {
		t.Errorf("runs in progress = %v, want 2", got)
	}

	r.RunFinished("deletory", StatusOK, time.Second)
	r.RunFinished("deletory", StatusError, time.Second)
	if got := gaugeValue(t, r.RunsInProgress); got != 0 {
		t.Errorf("runs in progress = %v, want 0", got)
	}
	if got := counterValue(t, r.RunsTotal.WithLabelValues("deletory", StatusError)); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}

	var metric dto.Metric
	if err := r.RunDuration.WithLabelValues("deletory").(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatal(err)
	}
	if got := metric.Histogram.GetSampleCount(); got != 2 {
		t.Errorf("duration samples = %v, want 2", got)
	}
}
