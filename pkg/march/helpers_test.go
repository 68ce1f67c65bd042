package march

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/dd0wney/cluso-foggy/pkg/arrival"
	"github.com/dd0wney/cluso-foggy/pkg/graph"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"github.com/stretchr/testify/require"
)

// scripted yields a fixed arrival sequence, then zero.
type scripted struct {
	counts []int
	next   int
}

func (s *scripted) Next(*rand.Rand) int {
	if s.next >= len(s.counts) {
		return 0
	}
	k := s.counts[s.next]
	s.next++
	return k
}

func (s *scripted) MidPoint() int { return 0 }

func constant(t *testing.T, k int) arrival.Generator {
	t.Helper()
	iv, err := arrival.NewInterval(k, 0)
	require.NoError(t, err)
	return iv
}

func mustInterval(t *testing.T, mid, variation int) arrival.Generator {
	t.Helper()
	iv, err := arrival.NewInterval(mid, variation)
	require.NoError(t, err)
	return iv
}

func buildTable(t *testing.T, g *graph.Graph) *walk.Table {
	t.Helper()
	table, _, err := walk.BuildTable(g, walk.TableOptions{WeightKey: "weight"})
	require.NoError(t, err)
	return table
}

// chain is the directed path 0 -> 1 -> ... -> n-1.
func chain(t *testing.T, n int) *walk.Table {
	t.Helper()
	g := graph.New(true)
	for i := 1; i < n; i++ {
		_, err := g.AddEdge(int64(i-1), int64(i), 1, nil)
		require.NoError(t, err)
	}
	return buildTable(t, g)
}

// recorder wraps a launcher and keeps every batch of paths, per step.
type recorder struct {
	parallel.Launcher
	mu      sync.Mutex
	batches [][]parallel.Path
	jobs    [][]parallel.Job
	marks   []int
}

// markStep is a Progress hook noting how many batches each step produced.
func (r *recorder) markStep(Progress) {
	r.mu.Lock()
	r.marks = append(r.marks, len(r.batches))
	r.mu.Unlock()
}

// perStep returns the batch of every step, nil for steps that dispatched
// nothing. It needs markStep installed as the Progress hook.
func (r *recorder) perStep() [][]parallel.Path {
	out := make([][]parallel.Path, len(r.marks))
	prev := 0
	for step, mark := range r.marks {
		if mark > prev {
			out[step] = r.batches[mark-1]
		}
		prev = mark
	}
	return out
}

func newRecorder(t *testing.T, mode parallel.Mode, workers int) *recorder {
	t.Helper()
	l, err := parallel.NewLocal(mode, workers, nil)
	require.NoError(t, err)
	return &recorder{Launcher: l}
}

func (r *recorder) Launch(ctx context.Context, table *walk.Table, seeds []uint64) (parallel.Dispatcher, error) {
	d, err := r.Launcher.Launch(ctx, table, seeds)
	if err != nil {
		return nil, err
	}
	return &recordingDispatcher{Dispatcher: d, r: r}, nil
}

type recordingDispatcher struct {
	parallel.Dispatcher
	r *recorder
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, jobs []parallel.Job) ([]parallel.Path, error) {
	paths, err := d.Dispatcher.Dispatch(ctx, jobs)
	if err == nil {
		d.r.mu.Lock()
		d.r.batches = append(d.r.batches, paths)
		d.r.jobs = append(d.r.jobs, append([]parallel.Job(nil), jobs...))
		d.r.mu.Unlock()
	}
	return paths, err
}

// failingLauncher starts dispatchers whose every batch fails.
type failingLauncher struct {
	launchErr error
}

func (f failingLauncher) Workers() int        { return 2 }
func (f failingLauncher) Mode() parallel.Mode { return parallel.Direct }

func (f failingLauncher) Launch(context.Context, *walk.Table, []uint64) (parallel.Dispatcher, error) {
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	return failingDispatcher{}, nil
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, []parallel.Job) ([]parallel.Path, error) {
	return nil, errors.Join(parallel.ErrWorkerFailed, errors.New("worker 1 crashed"))
}
func (failingDispatcher) Workers() int        { return 2 }
func (failingDispatcher) Mode() parallel.Mode { return parallel.Direct }
func (failingDispatcher) Close() error        { return nil }
