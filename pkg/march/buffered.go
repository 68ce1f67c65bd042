package march

import (
	"context"

	"github.com/dd0wney/cluso-foggy/pkg/capacity"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
)

// BufferedResult is the outcome of RunBuffered.
type BufferedResult struct {
	Activity
	// Backlog counts walkers that entered the backlog at node i in step t.
	Backlog *stats.CountMatrix
	// Dropped counts, per step, walkers removed by the backlog bound.
	Dropped []int
	// Remaining is the backlog size after the last step.
	Remaining int
}

// DroppedTotal sums Dropped.
func (b *BufferedResult) DroppedTotal() int {
	total := 0
	for _, d := range b.Dropped {
		total += d
	}
	return total
}

// RunBuffered marches with per-node capacity, parking rejected walkers in a
// backlog instead of discarding them.
//
// Each step first bounds the carried backlog with policy, then dispatches
// one batch: every backlog walker, oldest first, resumes from the node that
// rejected it with its remaining step budget, followed by the step's new
// walkers. Backlog walkers are applied before new ones. The resumed node is
// the first position of a replayed path and is checked again; replayed paths
// are not cut by the transient. A walker rejected again, old or new, joins
// the backlog for the next step.
func RunBuffered(ctx context.Context, cfg Config, caps capacity.Vector, policy BacklogPolicy) (*BufferedResult, error) {
	if err := cfg.validate(caps, true); err != nil {
		return nil, err
	}
	r, err := start(ctx, &cfg, Buffered)
	if err != nil {
		return nil, err
	}

	n := cfg.Table.Len()
	res := &BufferedResult{
		Backlog: stats.NewCountMatrix(n, cfg.TimePoints),
		Dropped: make([]int, cfg.TimePoints),
	}
	act := stats.NewMatrix(n, cfg.TimePoints)
	total := capacity.Total(caps)

	var backlog Backlog
	err = func() error {
		for t := 0; t < cfg.TimePoints; t++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			res.Dropped[t] = policy.apply(&backlog, total, cfg.TimePoints-t)
			replays := backlog.take()

			jobs := r.jobs[:0]
			for _, w := range replays {
				jobs = append(jobs, parallel.Job{Start: w.Node, Budget: max(cfg.MaxSteps-w.Elapsed, 0)})
			}
			jobs = r.newJobs(jobs)
			r.jobs = jobs

			paths, err := r.sample(ctx, t, jobs)
			if err != nil {
				return err
			}

			visits, rejected := 0, 0
			for _, p := range replayFirst(paths, len(replays)) {
				from, elapsed := cfg.Transient, 0
				if p.Job < len(replays) {
					from, elapsed = 0, replays[p.Job].Elapsed
				}
				for pos := from; pos < len(p.Nodes); pos++ {
					node := int(p.Nodes[pos])
					if act.At(node, t) >= caps[node] {
						res.Backlog.Inc(node, t)
						backlog.Push(Walker{Node: p.Nodes[pos], Elapsed: elapsed + pos})
						rejected++
						break
					}
					act.Add(node, t, r.value.Value(p.Nodes[pos]))
					visits++
				}
			}

			r.metrics.RecordBacklog(backlog.Len(), res.Dropped[t])
			r.stepDone(Progress{
				Step:     t,
				Walkers:  len(jobs),
				Rejected: rejected,
				Backlog:  backlog.Len(),
				Dropped:  res.Dropped[t],
			}, len(replays), visits)
		}
		return nil
	}()
	if err := r.finish(err); err != nil {
		return nil, err
	}

	res.Activity = Activity{Matrix: act, Seed: r.seed, Walkers: r.injected}
	res.Remaining = backlog.Len()
	return res, nil
}

// replayFirst orders paths so that those of the first replays jobs come
// before the rest, keeping dispatch order within each group.
func replayFirst(paths []parallel.Path, replays int) []parallel.Path {
	if replays == 0 {
		return paths
	}
	ordered := make([]parallel.Path, 0, len(paths))
	for _, p := range paths {
		if p.Job < replays {
			ordered = append(ordered, p)
		}
	}
	for _, p := range paths {
		if p.Job >= replays {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
