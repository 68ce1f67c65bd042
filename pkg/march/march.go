package march

import (
	"context"

	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
)

// Activity is the recorded activity of a march.
type Activity struct {
	// Matrix is N x T: activity of node i at step t.
	Matrix *stats.Matrix
	// Seed is the master seed actually used.
	Seed uint64
	// Walkers is the number of new walkers injected.
	Walkers int64
}

// Run marches without capacity limits. Every path position at or beyond
// the transient adds the assessor's value to that node at that step.
func Run(ctx context.Context, cfg Config) (*Activity, error) {
	if err := cfg.validate(nil, false); err != nil {
		return nil, err
	}
	r, err := start(ctx, &cfg, Unconstrained)
	if err != nil {
		return nil, err
	}

	act := stats.NewMatrix(cfg.Table.Len(), cfg.TimePoints)
	err = r.steps(ctx, func(t int, paths []parallel.Path) (int, int) {
		visits := 0
		for _, p := range paths {
			for pos := cfg.Transient; pos < len(p.Nodes); pos++ {
				node := p.Nodes[pos]
				act.Add(int(node), t, r.value.Value(node))
				visits++
			}
		}
		return visits, 0
	})
	if err := r.finish(err); err != nil {
		return nil, err
	}
	return &Activity{Matrix: act, Seed: r.seed, Walkers: r.injected}, nil
}

// RunIterative is Run without the N x T matrix: each step's activity vector
// is folded into a running per-node mean and sample standard deviation.
// Steps without arrivals fold a zero vector.
func RunIterative(ctx context.Context, cfg Config) (*stats.Summary, error) {
	if err := cfg.validate(nil, false); err != nil {
		return nil, err
	}
	r, err := start(ctx, &cfg, Iterative)
	if err != nil {
		return nil, err
	}

	acc := stats.NewAccumulator(cfg.Table.Len())
	x := make([]float64, cfg.Table.Len())
	err = r.steps(ctx, func(t int, paths []parallel.Path) (int, int) {
		clear(x)
		visits := 0
		for _, p := range paths {
			for pos := cfg.Transient; pos < len(p.Nodes); pos++ {
				node := p.Nodes[pos]
				x[node] += r.value.Value(node)
				visits++
			}
		}
		acc.Add(x)
		return visits, 0
	})
	if err := r.finish(err); err != nil {
		return nil, err
	}
	return acc.Summary(), nil
}

// steps drives the plain step loop: draw new walkers, sample them, and hand
// the paths to apply, which returns the step's visit and rejection counts.
func (r *runner) steps(ctx context.Context, apply func(t int, paths []parallel.Path) (visits, rejected int)) error {
	for t := 0; t < r.cfg.TimePoints; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.jobs = r.newJobs(r.jobs[:0])
		paths, err := r.sample(ctx, t, r.jobs)
		if err != nil {
			return err
		}
		visits, rejected := apply(t, paths)
		r.stepDone(Progress{Step: t, Walkers: len(r.jobs), Rejected: rejected}, 0, visits)
	}
	return nil
}
