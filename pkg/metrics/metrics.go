package metrics

import "time"

// Status labels for MarchesTotal.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Origin labels for WalkersTotal.
const (
	OriginNew     = "new"
	OriginBacklog = "backlog"
)

// RecordMarch records a finished march.
func (r *Registry) RecordMarch(policy, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.MarchesTotal.WithLabelValues(policy, status).Inc()
	r.MarchDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// RecordStep records one completed time step.
func (r *Registry) RecordStep(policy string, newWalkers, replayed, visits, rejected int) {
	if r == nil {
		return
	}
	r.StepsTotal.WithLabelValues(policy).Inc()
	r.WalkersTotal.WithLabelValues(policy, OriginNew).Add(float64(newWalkers))
	if replayed > 0 {
		r.WalkersTotal.WithLabelValues(policy, OriginBacklog).Add(float64(replayed))
	}
	r.VisitsTotal.WithLabelValues(policy).Add(float64(visits))
	if rejected > 0 {
		r.RejectionsTotal.WithLabelValues(policy).Add(float64(rejected))
	}
}

// RecordBacklog sets the backlog size and counts walkers dropped by the bound.
func (r *Registry) RecordBacklog(size, dropped int) {
	if r == nil {
		return
	}
	r.BacklogSize.Set(float64(size))
	if dropped > 0 {
		r.BacklogDroppedTotal.Add(float64(dropped))
	}
}

// RecordDispatch records one batch of walk jobs.
func (r *Registry) RecordDispatch(mode string, jobs int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.DispatchJobs.WithLabelValues(mode).Add(float64(jobs))
	r.DispatchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if err != nil {
		r.DispatchErrors.WithLabelValues(mode).Inc()
	}
}

// SetRemoteWorkers sets the connected remote worker count.
func (r *Registry) SetRemoteWorkers(n int) {
	if r == nil {
		return
	}
	r.RemoteWorkers.Set(float64(n))
}

// RecordResults records a save to sink ("file", "jsonl", "postgres", "s3").
func (r *Registry) RecordResults(sink string, bytes int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.ResultsSaveErrors.WithLabelValues(sink).Inc()
		return
	}
	if bytes > 0 {
		r.ResultsWrittenBytes.WithLabelValues(sink).Add(float64(bytes))
	}
}

// RunStarted marks a sweep run as in progress.
func (r *Registry) RunStarted() {
	if r == nil {
		return
	}
	r.RunsInProgress.Inc()
}

// RunFinished records the end of a run begun with RunStarted.
func (r *Registry) RunFinished(policy, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.RunsInProgress.Dec()
	r.RunsTotal.WithLabelValues(policy, status).Inc()
	r.RunDuration.WithLabelValues(policy).Observe(duration.Seconds())
}
