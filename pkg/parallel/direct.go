package parallel

import (
	"context"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

// DirectDispatcher splits every batch into one contiguous chunk per worker.
// Chunk i is always walked by worker i with sampler i, so a fixed seed list
// and worker count reproduce the same paths.
type DirectDispatcher struct {
	pool     *WorkerPool
	samplers []*walk.Sampler
}

// NewDirect starts a synchronous dispatcher with one sampler per seed.
func NewDirect(table *walk.Table, workers int, seeds []uint64, logger logging.Logger) (*DirectDispatcher, error) {
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
	return &DirectDispatcher{pool: pool, samplers: samplers}, nil
}

// Workers implements Dispatcher.
func (d *DirectDispatcher) Workers() int { return len(d.samplers) }

// Mode implements Dispatcher.
func (d *DirectDispatcher) Mode() Mode { return Direct }

// Dispatch walks every job and returns the paths in job order.
func (d *DirectDispatcher) Dispatch(ctx context.Context, jobs []Job) ([]Path, error) {
	if len(jobs) == 0 {
		return nil, ctx.Err()
	}

	out := make([]Path, len(jobs))
	chunkSize := (len(jobs) + len(d.samplers) - 1) / len(d.samplers)

	batch := d.pool.NewBatch(ctx)
	for w, lo := 0, 0; lo < len(jobs); w, lo = w+1, lo+chunkSize {
		hi := min(lo+chunkSize, len(jobs))
		ok := batch.Go(w, func(w int) error {
			return walkChunk(ctx, d.samplers[w], jobs, lo, hi, out)
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
func (d *DirectDispatcher) Close() error {
	d.pool.Close()
	return nil
}
