package march

import (
	"context"

	"github.com/dd0wney/cluso-foggy/pkg/capacity"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
)

// DeletoryResult is the outcome of RunDeletory.
type DeletoryResult struct {
	Activity
	// Rejected counts walkers removed at node i during step t.
	Rejected *stats.CountMatrix
}

// RunDeletory marches with per-node capacity. A walker arriving at a node
// whose activity for the step already reached its capacity is counted as
// rejected there and vanishes. Walkers are applied in dispatch order, so
// earlier walkers of a step take capacity from later ones.
func RunDeletory(ctx context.Context, cfg Config, caps capacity.Vector) (*DeletoryResult, error) {
	if err := cfg.validate(caps, true); err != nil {
		return nil, err
	}
	r, err := start(ctx, &cfg, Deletory)
	if err != nil {
		return nil, err
	}

	n := cfg.Table.Len()
	act := stats.NewMatrix(n, cfg.TimePoints)
	rejected := stats.NewCountMatrix(n, cfg.TimePoints)
	err = r.steps(ctx, func(t int, paths []parallel.Path) (int, int) {
		visits, removed := 0, 0
		for _, p := range paths {
			for pos := cfg.Transient; pos < len(p.Nodes); pos++ {
				node := int(p.Nodes[pos])
				if act.At(node, t) >= caps[node] {
					rejected.Inc(node, t)
					removed++
					break
				}
				act.Add(node, t, r.value.Value(p.Nodes[pos]))
				visits++
			}
		}
		return visits, removed
	})
	if err := r.finish(err); err != nil {
		return nil, err
	}
	return &DeletoryResult{
		Activity: Activity{Matrix: act, Seed: r.seed, Walkers: r.injected},
		Rejected: rejected,
	}, nil
}
