package march

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/assess"
	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

// runner owns the controller state shared by all policies: the master
// random stream and the dispatcher bound to the table.
type runner struct {
	cfg      *Config
	policy   Policy
	seed     uint64
	rng      *rand.Rand
	disp     parallel.Dispatcher
	value    assess.Assessor
	logger   logging.Logger
	metrics  *metrics.Registry
	timer    *logging.Timer
	started  time.Time
	jobs     []parallel.Job
	injected int64
}

// start seeds the controller and launches the dispatcher. Worker seeds are
// drawn from the master stream first; the controller keeps using the master
// stream afterwards.
func start(ctx context.Context, cfg *Config, policy Policy) (*runner, error) {
	launcher := cfg.Launcher
	if launcher == nil {
		l, err := parallel.NewLocal(parallel.Direct, 1, cfg.Logger)
		if err != nil {
			return nil, configError("%v", err)
		}
		launcher = l
	}

	seed := cfg.seed()
	rng := walk.NewRand(seed)
	seeds := parallel.SplitSeeds(rng, launcher.Workers())

	disp, err := launcher.Launch(ctx, cfg.Table, seeds)
	if err != nil {
		return nil, &Error{Policy: policy, Step: 0, Cause: err}
	}

	logger := cfg.logger().With(logging.Component("march"), logging.Policy(string(policy)))
	r := &runner{
		cfg:     cfg,
		policy:  policy,
		seed:    seed,
		rng:     rng,
		disp:    disp,
		value:   cfg.assessor(),
		logger:  logger,
		metrics: cfg.Metrics,
		started: time.Now(),
	}
	r.timer = logging.StartTimer(logger, "march finished", logging.Uint64("seed", seed))
	logger.Info("march started",
		logging.Int("nodes", cfg.Table.Len()),
		logging.Int("time_points", cfg.TimePoints),
		logging.Int("max_steps", cfg.MaxSteps),
		logging.Int("transient", cfg.Transient),
		logging.Workers(disp.Workers()),
		logging.String("dispatch", disp.Mode().String()),
		logging.Uint64("seed", seed),
	)
	return r, nil
}

// newJobs draws this step's arrival count and a source for each walker.
// jobs is appended to and returned.
func (r *runner) newJobs(jobs []parallel.Job) []parallel.Job {
	k := r.cfg.Arrivals.Next(r.rng)
	for i := 0; i < k; i++ {
		src := r.cfg.Sources[r.rng.IntN(len(r.cfg.Sources))]
		jobs = append(jobs, parallel.Job{Start: src, Budget: r.cfg.MaxSteps})
	}
	r.injected += int64(k)
	return jobs
}

// sample dispatches jobs and waits for all of their paths.
func (r *runner) sample(ctx context.Context, step int, jobs []parallel.Job) ([]parallel.Path, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	began := time.Now()
	paths, err := r.disp.Dispatch(ctx, jobs)
	r.metrics.RecordDispatch(r.disp.Mode().String(), len(jobs), time.Since(began), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Policy: r.policy, Step: step, Cause: err}
	}
	if len(paths) != len(jobs) {
		return nil, &Error{Policy: r.policy, Step: step, Cause: errors.New("dispatcher returned a partial batch")}
	}
	return paths, nil
}

// stepDone reports a finished step to logs, metrics and the progress hook.
func (r *runner) stepDone(p Progress, replayed, visits int) {
	p.Policy = r.policy
	p.TimePoints = r.cfg.TimePoints
	p.Fraction = float64(p.Step+1) / float64(r.cfg.TimePoints)

	r.metrics.RecordStep(string(r.policy), p.Walkers-replayed, replayed, visits, p.Rejected)
	if r.logger.Enabled(logging.DebugLevel) {
		r.logger.Debug("step complete",
			logging.Step(p.Step),
			logging.Count(p.Walkers),
			logging.Int("visits", visits),
			logging.Int("rejected", p.Rejected),
			logging.Backlog(p.Backlog),
		)
	}
	if r.cfg.Progress != nil {
		r.cfg.Progress(p)
	}
}

// finish closes the dispatcher and records the outcome. err is returned
// unchanged.
func (r *runner) finish(err error) error {
	closeErr := r.disp.Close()
	status := metrics.StatusOK
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		status = metrics.StatusCancelled
	case err != nil:
		status = metrics.StatusError
	}
	r.metrics.RecordMarch(string(r.policy), status, time.Since(r.started))

	if err != nil {
		r.timer.EndError(err)
		return err
	}
	if closeErr != nil {
		r.logger.Warn("dispatcher close failed", logging.Error(closeErr))
	}
	r.timer.End(logging.Int64("walkers", r.injected))
	return nil
}
