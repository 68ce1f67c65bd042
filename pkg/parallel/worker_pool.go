package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
)

// ErrPoolClosed is returned when tasks are submitted after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// MaxWorkers bounds the pool size.
const MaxWorkers = 1 << 12

// WorkerPool runs tasks on a fixed set of goroutines numbered 0..n-1.
// Every worker has its own queue, so a task can be pinned to a worker, and
// all workers also drain a shared queue. A worker runs one task at a time,
// which lets per-worker state such as a sampler go unlocked.
type WorkerPool struct {
	workers int
	shared  chan task
	pinned  []chan task
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards the queues against close during send
	closed  bool
	logger  logging.Logger
}

type task struct {
	fn    func(worker int) error
	batch *Batch
}

// NewWorkerPool starts a pool. Non-positive counts mean one worker. A nil
// logger discards panic reports.
func NewWorkerPool(workers int, logger logging.Logger) (*WorkerPool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("worker count %d exceeds %d", workers, MaxWorkers)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	wp := &WorkerPool{
		workers: workers,
		shared:  make(chan task, workers*2),
		pinned:  make([]chan task, workers),
		logger:  logger.With(logging.Component("worker_pool")),
	}
	for i := range wp.pinned {
		wp.pinned[i] = make(chan task, 2)
	}
	wp.wg.Add(workers)
	for i := range workers {
		go wp.worker(i)
	}
	return wp, nil
}

// Workers returns the number of goroutines.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	pinned, shared := wp.pinned[id], wp.shared
	for pinned != nil || shared != nil {
		select {
		case t, ok := <-pinned:
			if !ok {
				pinned = nil
				continue
			}
			wp.run(id, t)
		case t, ok := <-shared:
			if !ok {
				shared = nil
				continue
			}
			wp.run(id, t)
		}
	}
}

func (wp *WorkerPool) run(id int, t task) {
	defer t.batch.wg.Done()
	if err := wp.call(id, t.fn); err != nil {
		t.batch.fail(err)
	}
}

// call runs fn, turning a panic into ErrWorkerFailed.
func (wp *WorkerPool) call(id int, fn func(int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker panic recovered", logging.Int("worker", id), logging.Any("panic", r))
			err = fmt.Errorf("%w: worker %d: %v", ErrWorkerFailed, id, r)
		}
	}()
	return fn(id)
}

func (wp *WorkerPool) submit(ctx context.Context, worker int, t task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}
	q := wp.shared
	if worker >= 0 {
		if worker >= wp.workers {
			return fmt.Errorf("worker %d out of range [0, %d)", worker, wp.workers)
		}
		q = wp.pinned[worker]
	}

	select {
	case q <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for queued ones to finish. It is
// safe to call more than once.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.shared)
		for _, q := range wp.pinned {
			close(q)
		}
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

// Batch is a group of tasks whose errors are reported together by Wait.
type Batch struct {
	pool *WorkerPool
	ctx  context.Context
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewBatch starts an empty batch bound to ctx.
func (wp *WorkerPool) NewBatch(ctx context.Context) *Batch {
	return &Batch{pool: wp, ctx: ctx}
}

// Go queues fn on worker, or on whichever worker is free when worker is
// negative. It blocks while the queue is full. It returns false when the
// task could not be queued; the cause is reported by Wait.
func (b *Batch) Go(worker int, fn func(worker int) error) bool {
	b.wg.Add(1)
	if err := b.pool.submit(b.ctx, worker, task{fn: fn, batch: b}); err != nil {
		b.wg.Done()
		b.fail(err)
		return false
	}
	return true
}

// Wait blocks until every queued task has finished. A done context wins
// over task errors.
func (b *Batch) Wait() error {
	b.wg.Wait()
	if err := b.ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}

func (b *Batch) fail(err error) {
	b.mu.Lock()
	b.errs = append(b.errs, err)
	b.mu.Unlock()
}
