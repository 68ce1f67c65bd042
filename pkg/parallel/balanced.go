package parallel

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

// BalancedDispatcher hands small chunks to whichever worker is free and
// collects paths as chunks complete. Which sampler walks which job depends
// on scheduling, so results are not reproducible.
type BalancedDispatcher struct {
	pool     *WorkerPool
	samplers []*walk.Sampler
}

// NewBalanced starts an asynchronous dispatcher with one sampler per seed.
func NewBalanced(table *walk.Table, workers int, seeds []uint64, logger logging.Logger) (*BalancedDispatcher, error) {
	if workers <= 0 {
		workers = 1
	}
	samplers, err := newSamplers(table, workers, seeds)
	if err != nil {
		return nil, err
	}
	pool, err := NewWorkerPool(workers, logger)
	if err != nil {
		return nil, err
	}
	return &BalancedDispatcher{pool: pool, samplers: samplers}, nil
}

// Workers implements Dispatcher.
func (d *BalancedDispatcher) Workers() int { return len(d.samplers) }

// Mode implements Dispatcher.
func (d *BalancedDispatcher) Mode() Mode { return Balanced }

// ChunkSize returns the balanced chunk length for n jobs.
func ChunkSize(n, workers int) int {
	if workers <= 0 {
		workers = 1
	}
	return max((n-1)/(2*workers), 1)
}

// Dispatch walks every job and returns the paths in completion order. Each
// Path carries the index of its job.
func (d *BalancedDispatcher) Dispatch(ctx context.Context, jobs []Job) ([]Path, error) {
	if len(jobs) == 0 {
		return nil, ctx.Err()
	}

	chunkSize := ChunkSize(len(jobs), len(d.samplers))
	scratch := make([]Path, len(jobs))
	var (
		mu  sync.Mutex
		out = make([]Path, 0, len(jobs))
	)

	batch := d.pool.NewBatch(ctx)
	for lo := 0; lo < len(jobs); lo += chunkSize {
		hi := min(lo+chunkSize, len(jobs))
		ok := batch.Go(-1, func(w int) error {
			if err := walkChunk(ctx, d.samplers[w], jobs, lo, hi, scratch); err != nil {
				return err
			}
			mu.Lock()
			out = append(out, scratch[lo:hi]...)
			mu.Unlock()
			return nil
		})
		if !ok {
			break
		}
	}
	if err := batch.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close stops the worker goroutines.
func (d *BalancedDispatcher) Close() error {
	d.pool.Close()
	return nil
}
