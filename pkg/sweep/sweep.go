// Package sweep executes every run of an experiment: it prepares graphs,
// tables and policies, marches, and hands the outcome to result sinks.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/arrival"
	"github.com/dd0wney/cluso-foggy/pkg/assess"
	"github.com/dd0wney/cluso-foggy/pkg/capacity"
	"github.com/dd0wney/cluso-foggy/pkg/config"
	"github.com/dd0wney/cluso-foggy/pkg/graph"
	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/march"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/remote"
	"github.com/dd0wney/cluso-foggy/pkg/results"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"golang.org/x/sync/errgroup"
)

// Event reports progress of one run.
type Event struct {
	Run   config.Run
	Total int
	SimID string
	// Step is the march progress; zero before the first step.
	Step march.Progress
	// Done is set once the run's results are saved, Err if it failed.
	Done bool
	Err  error
}

// Runner executes an experiment.
type Runner struct {
	Experiment *config.Experiment
	Writer     *results.Writer
	// Stores receive run and node records; may be empty.
	Stores   []results.Store
	Uploader *results.S3Uploader
	// Concurrency bounds how many runs march at once. Zero means one.
	Concurrency int
	Progress    func(Event)
	Metrics     *metrics.Registry
	Logger      logging.Logger

	mu     sync.Mutex
	graphs map[string]*prepared
}

// prepared caches what every run on one graph shares.
type prepared struct {
	g     *graph.Graph
	table *walk.Table
	index *walk.NodeIndex
}

// Run executes every run of the experiment and returns their records in
// run order. The first failing run cancels the rest.
func (r *Runner) Run(ctx context.Context) ([]results.RunRecord, error) {
	if r.Experiment == nil {
		return nil, errors.New("no experiment")
	}
	if r.Writer == nil {
		return nil, errors.New("no result writer")
	}
	logger := logging.OrDefault(r.Logger).With(logging.Component("sweep"))

	runs := r.Experiment.Runs()
	records := make([]results.RunRecord, len(runs))
	logger.Info("sweep started", logging.Count(len(runs)), logging.Policy(string(r.Experiment.Policy())))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))
	for i, run := range runs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := r.runOne(gctx, run, len(runs), logger)
			if err != nil {
				return fmt.Errorf("run %d (%s): %w", run.Index, run.Graph.Path, err)
			}
			records[i] = *rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	// runs skipped after cancellation leave no error in the group
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("sweep finished", logging.Count(len(runs)))
	return records, nil
}

func (r *Runner) prepare(src config.GraphSource) (*prepared, error) {
	key := fmt.Sprintf("%s|%s|%t|%s", src.Path, src.Format, src.Directed, src.WeightKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.graphs[key]; ok {
		return p, nil
	}

	g, err := graph.Load(src.Path, src.Format, src.Directed)
	if err != nil {
		return nil, err
	}
	table, index, err := walk.BuildTable(g, walk.TableOptions{WeightKey: src.WeightKey})
	if err != nil {
		return nil, err
	}

	if r.graphs == nil {
		r.graphs = make(map[string]*prepared)
	}
	p := &prepared{g: g, table: table, index: index}
	r.graphs[key] = p
	return p, nil
}

func (r *Runner) runOne(ctx context.Context, run config.Run, total int, logger logging.Logger) (rec *results.RunRecord, err error) {
	start := time.Now()
	r.Metrics.RunStarted()
	defer func() {
		status := metrics.StatusOK
		switch {
		case err != nil && ctx.Err() != nil:
			status = metrics.StatusCancelled
		case err != nil:
			status = metrics.StatusError
		}
		r.Metrics.RunFinished(string(run.Policy), status, time.Since(start))
	}()

	exp := r.Experiment
	p, err := r.prepare(run.Graph)
	if err != nil {
		return nil, err
	}

	simID := results.NewSimID()
	logger = logger.With(logging.SimID(simID))
	n := p.index.Len()
	walkers, variation, steps := run.Walkers(n), run.Variation(n), run.Steps(n)

	arrivals, err := arrival.NewInterval(walkers, variation)
	if err != nil {
		return nil, err
	}
	assessor, err := r.assessor(p, run.Graph.WeightKey)
	if err != nil {
		return nil, err
	}
	launcher, err := r.launcher(logger)
	if err != nil {
		return nil, err
	}

	seed := rand.Uint64()
	if run.Seed != nil {
		seed = *run.Seed
	}

	emit := func(ev Event) {
		if r.Progress != nil {
			ev.Run, ev.Total, ev.SimID = run, total, simID
			r.Progress(ev)
		}
	}

	cfg := march.Config{
		Table:      p.table,
		Sources:    p.index.All(),
		Arrivals:   arrivals,
		TimePoints: exp.TimePoints,
		MaxSteps:   steps,
		Assessor:   assessor,
		Transient:  exp.Transient,
		Seed:       &seed,
		Launcher:   launcher,
		Progress:   func(pr march.Progress) { emit(Event{Step: pr}) },
		Metrics:    r.Metrics,
		Logger:     logger,
	}

	record := results.RunRecord{
		SimID:           simID,
		WalkSetup:       exp.WalkSetup,
		WalkType:        string(run.Policy),
		WalkerDist:      exp.WalkerDist,
		Walkers:         walkers,
		Variation:       variation,
		VisitValue:      exp.VisitValue,
		WalkerFactor:    run.WalkerFactor,
		VariationFactor: run.VariationFactor,
		StepsFactor:     run.StepsFactor,
		Steps:           steps,
		TimePoints:      exp.TimePoints,
		Transient:       exp.Transient,
		GraphName:       p.g.Name,
		GraphType:       run.Graph.Type,
		Directed:        p.g.Directed(),
		Nodes:           n,
		Edges:           p.g.EdgeCount(),
		Seed:            seed,
		Workers:         launcher.Workers(),
		Dispatch:        launcher.Mode().String(),
		StartedAt:       time.Now().UTC(),
	}

	outcome, err := r.march(ctx, cfg, run, p, &record, steps, arrivals.MidPoint())
	record.FinishedAt = time.Now().UTC()
	if err != nil {
		emit(Event{Done: true, Err: err})
		return nil, err
	}

	if err := r.save(ctx, &record, p, run.Graph.WeightKey, outcome); err != nil {
		emit(Event{Done: true, Err: err})
		return nil, err
	}
	emit(Event{Done: true})
	return &record, nil
}

// march runs the configured policy and writes its matrices.
func (r *Runner) march(ctx context.Context, cfg march.Config, run config.Run, p *prepared, record *results.RunRecord, steps, mid int) (results.Outcome, error) {
	var caps capacity.Vector
	if r.Experiment.Constrained() {
		var err error
		if caps, err = r.capacities(run, p, mid, steps); err != nil {
			return results.Outcome{}, err
		}
		record.Capacity = r.Experiment.Capacity
		record.CapacityFactor = run.CapacityFactor
	}

	id := record.SimID
	switch run.Policy {
	case march.Iterative:
		summary, err := march.RunIterative(ctx, cfg)
		if err != nil {
			return results.Outcome{}, err
		}
		if _, err := r.Writer.WriteSummary(id, summary); err != nil {
			return results.Outcome{}, err
		}
		return results.Outcome{Summary: summary}, nil

	case march.Deletory:
		res, err := march.RunDeletory(ctx, cfg, caps)
		if err != nil {
			return results.Outcome{}, err
		}
		if err := r.writeActivity(id, &res.Activity); err != nil {
			return results.Outcome{}, err
		}
		if _, err := r.Writer.WriteCounts(id, results.FileRejected, res.Rejected); err != nil {
			return results.Outcome{}, err
		}
		return results.Outcome{Activity: res.Matrix, Rejected: res.Rejected, Capacity: caps}, nil

	case march.Buffered:
		res, err := march.RunBuffered(ctx, cfg, caps, r.Experiment.BacklogPolicy())
		if err != nil {
			return results.Outcome{}, err
		}
		if err := r.writeActivity(id, &res.Activity); err != nil {
			return results.Outcome{}, err
		}
		if _, err := r.Writer.WriteCounts(id, results.FileBacklog, res.Backlog); err != nil {
			return results.Outcome{}, err
		}
		record.DroppedTotal = res.DroppedTotal()
		record.Remaining = res.Remaining
		// backlog entries are the buffered counterpart of rejections
		return results.Outcome{Activity: res.Matrix, Rejected: res.Backlog, Capacity: caps}, nil

	default:
		act, err := march.Run(ctx, cfg)
		if err != nil {
			return results.Outcome{}, err
		}
		if err := r.writeActivity(id, act); err != nil {
			return results.Outcome{}, err
		}
		return results.Outcome{Activity: act.Matrix}, nil
	}
}

// capacities sizes the capacity vector of a constrained run. Degree
// capacity counts edges and ignores the graph's weight key.
func (r *Runner) capacities(run config.Run, p *prepared, mid, steps int) (capacity.Vector, error) {
	if r.Experiment.Capacity == "degree" {
		return capacity.Degree(p.g, p.index, mid, steps, run.CapacityFactor, "")
	}
	return capacity.Uniform(p.index.Len(), mid, steps, run.CapacityFactor)
}

func (r *Runner) writeActivity(simID string, act *march.Activity) error {
	_, err := r.Writer.WriteMatrix(simID, results.FileActivity, act.Matrix)
	return err
}

// save summarizes the outcome into every store and uploads the run files.
func (r *Runner) save(ctx context.Context, record *results.RunRecord, p *prepared, weightKey string, out results.Outcome) error {
	nodes, err := results.Summarize(record.SimID, p.g, p.index, weightKey, out)
	if err != nil {
		return err
	}
	for _, s := range r.Stores {
		if err := s.SaveRun(ctx, *record, nodes); err != nil {
			return err
		}
	}
	if r.Uploader != nil {
		if _, err := r.Uploader.UploadRun(ctx, r.Writer.RunDir(record.SimID), record.SimID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) assessor(p *prepared, weightKey string) (assess.Assessor, error) {
	exp := r.Experiment
	if exp.VisitValue != "degree" {
		return assess.Unit, nil
	}
	nu := exp.Nu
	if nu == 0 {
		nu = assess.DefaultNu
	}
	mu, err := assess.ComputeMu(exp.Alpha, nu)
	if err != nil {
		return nil, err
	}
	return assess.NewDegree(p.g, p.index, mu, weightKey)
}

func (r *Runner) launcher(logger logging.Logger) (parallel.Launcher, error) {
	exp := r.Experiment
	mode := exp.Mode()
	if mode == parallel.Remote {
		return &remote.Launcher{
			Addrs:   exp.RemoteWorkers,
			Logger:  logger,
			Metrics: r.Metrics,
		}, nil
	}
	return parallel.NewLocal(mode, exp.Workers, logger)
}
