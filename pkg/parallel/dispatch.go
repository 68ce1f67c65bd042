package parallel

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

// ErrWorkerFailed reports a worker that panicked or returned an error. The
// whole dispatch fails with it and no paths are returned.
var ErrWorkerFailed = errors.New("walk worker failed")

// Job asks for one walk from Start of at most Budget steps.
type Job struct {
	Start  int32 `json:"s"`
	Budget int   `json:"b"`
}

// Path is a sampled walk and the index of the job that produced it.
type Path struct {
	Job   int     `json:"j"`
	Nodes []int32 `json:"n"`
}

// Dispatcher samples a batch of jobs, possibly in parallel.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobs []Job) ([]Path, error)
	Workers() int
	Mode() Mode
	Close() error
}

// Launcher starts a Dispatcher bound to a table, one seed per worker. The
// table is captured once and never changes for the dispatcher's lifetime.
type Launcher interface {
	Workers() int
	Mode() Mode
	Launch(ctx context.Context, table *walk.Table, seeds []uint64) (Dispatcher, error)
}

// SplitSeeds draws n distinct worker seeds from master. The caller keeps
// using master afterwards.
func SplitSeeds(master *rand.Rand, n int) []uint64 {
	seeds := make([]uint64, 0, n)
	seen := make(map[uint64]struct{}, n)
	for len(seeds) < n {
		s := master.Uint64()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		seeds = append(seeds, s)
	}
	return seeds
}

// Local launches in-process dispatchers.
type Local struct {
	mode    Mode
	workers int
	logger  logging.Logger
}

// NewLocal describes a Direct or Balanced dispatcher with the given number
// of workers. Non-positive counts mean one worker.
func NewLocal(mode Mode, workers int, logger logging.Logger) (*Local, error) {
	if mode == Remote {
		return nil, fmt.Errorf("local launcher cannot run mode %s", mode)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Local{mode: mode, workers: workers, logger: logger}, nil
}

// Workers implements Launcher.
func (l *Local) Workers() int { return l.workers }

// Mode implements Launcher.
func (l *Local) Mode() Mode { return l.mode }

// Launch implements Launcher.
func (l *Local) Launch(_ context.Context, table *walk.Table, seeds []uint64) (Dispatcher, error) {
	if l.mode == Balanced {
		return NewBalanced(table, l.workers, seeds, l.logger)
	}
	return NewDirect(table, l.workers, seeds, l.logger)
}

// newSamplers gives every worker its own random stream over the shared table.
func newSamplers(table *walk.Table, workers int, seeds []uint64) ([]*walk.Sampler, error) {
	if table == nil {
		return nil, errors.New("nil transition table")
	}
	if len(seeds) != workers {
		return nil, fmt.Errorf("need %d worker seeds, got %d", workers, len(seeds))
	}
	samplers := make([]*walk.Sampler, workers)
	for i, seed := range seeds {
		samplers[i] = walk.NewSampler(table, walk.NewRand(seed))
	}
	return samplers, nil
}

// walkChunk samples jobs[lo:hi] with s, writing into out at the same
// offsets. It stops early when ctx is done.
func walkChunk(ctx context.Context, s *walk.Sampler, jobs []Job, lo, hi int, out []Path) error {
	for i := lo; i < hi; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out[i] = Path{Job: i, Nodes: s.Walk(jobs[i].Start, jobs[i].Budget)}
	}
	return nil
}
