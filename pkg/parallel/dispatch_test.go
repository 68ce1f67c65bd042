package parallel

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/dd0wney/cluso-foggy/pkg/graph"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *walk.Table {
	t.Helper()
	table, _, err := walk.BuildTable(graph.Random(40, 0.15, false, walk.NewRand(17)), walk.TableOptions{})
	require.NoError(t, err)
	return table
}

func testJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{Start: int32(i % 40), Budget: 1 + i%12}
	}
	return jobs
}

func TestSplitSeeds(t *testing.T) {
	a := SplitSeeds(walk.NewRand(99), 16)
	b := SplitSeeds(walk.NewRand(99), 16)

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	seen := map[uint64]bool{}
	for _, s := range a {
		assert.False(t, seen[s], "duplicate seed %d", s)
		seen[s] = true
	}
	assert.NotEqual(t, a, SplitSeeds(walk.NewRand(100), 16))
}

func TestSplitSeedsAdvancesMaster(t *testing.T) {
	master := walk.NewRand(5)
	seeds := SplitSeeds(master, 3)

	fresh := walk.NewRand(5)
	for range seeds {
		fresh.Uint64()
	}
	assert.Equal(t, fresh.Uint64(), master.Uint64())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Direct, false},
		{"direct", Direct, false},
		{"Balanced", Balanced, false},
		{"remote", Remote, false},
		{"carrier-pigeon", Direct, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
	assert.True(t, Direct.Deterministic())
	assert.True(t, Remote.Deterministic())
	assert.False(t, Balanced.Deterministic())
}

func mustParse(t *testing.T, s string) Mode {
	m, err := ParseMode(s)
	require.NoError(t, err)
	return m
}

func TestDirectDispatch_JobOrderAndReproducible(t *testing.T) {
	table := testTable(t)
	jobs := testJobs(101)
	seeds := SplitSeeds(walk.NewRand(1), 4)

	run := func() []Path {
		d, err := NewDirect(table, 4, seeds, nil)
		require.NoError(t, err)
		defer d.Close()
		paths, err := d.Dispatch(context.Background(), jobs)
		require.NoError(t, err)
		return paths
	}

	first := run()
	require.Len(t, first, len(jobs))
	for i, p := range first {
		assert.Equal(t, i, p.Job)
		assert.Equal(t, jobs[i].Start, p.Nodes[0])
		assert.LessOrEqual(t, len(p.Nodes), jobs[i].Budget+1)
	}
	assert.Equal(t, first, run())
}

func TestDirectDispatch_ChunkAffinity(t *testing.T) {
	table := testTable(t)
	jobs := testJobs(10)
	seeds := []uint64{11, 22, 33}

	d, err := NewDirect(table, 3, seeds, nil)
	require.NoError(t, err)
	defer d.Close()
	paths, err := d.Dispatch(context.Background(), jobs)
	require.NoError(t, err)

	// chunks of four: jobs 0-3, 4-7, 8-9 on samplers 0, 1, 2
	for w, bounds := range [][2]int{{0, 4}, {4, 8}, {8, 10}} {
		s := walk.NewSampler(table, walk.NewRand(seeds[w]))
		for i := bounds[0]; i < bounds[1]; i++ {
			assert.Equal(t, s.Walk(jobs[i].Start, jobs[i].Budget), paths[i].Nodes, "job %d", i)
		}
	}
}

func TestBalancedDispatch_CoversEveryJob(t *testing.T) {
	table := testTable(t)
	jobs := testJobs(257)

	d, err := NewBalanced(table, 4, SplitSeeds(walk.NewRand(3), 4), nil)
	require.NoError(t, err)
	defer d.Close()

	paths, err := d.Dispatch(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, paths, len(jobs))

	idx := make([]int, len(paths))
	for i, p := range paths {
		idx[i] = p.Job
		assert.Equal(t, jobs[p.Job].Start, p.Nodes[0])
	}
	sort.Ints(idx)
	for i := range idx {
		assert.Equal(t, i, idx[i])
	}
}

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 1, ChunkSize(1, 4))
	assert.Equal(t, 1, ChunkSize(8, 4))
	assert.Equal(t, 12, ChunkSize(101, 4))
	assert.Equal(t, 50, ChunkSize(101, 1))
}

func TestDispatch_WorkerFailure(t *testing.T) {
	// neighbour 7 does not exist, so walking from 0 panics
	broken := &walk.Table{
		Neighbors: [][]int32{{7}, {}},
		CumProbs:  [][]float64{{1}, {}},
	}
	jobs := []Job{{Start: 1, Budget: 3}, {Start: 0, Budget: 3}}

	for _, mode := range []Mode{Direct, Balanced} {
		t.Run(mode.String(), func(t *testing.T) {
			l, err := NewLocal(mode, 2, nil)
			require.NoError(t, err)
			d, err := l.Launch(context.Background(), broken, []uint64{1, 2})
			require.NoError(t, err)
			defer d.Close()

			paths, err := d.Dispatch(context.Background(), jobs)
			assert.Nil(t, paths)
			assert.True(t, errors.Is(err, ErrWorkerFailed), "got %v", err)
		})
	}
}

func TestDispatch_Cancelled(t *testing.T) {
	table := testTable(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, mode := range []Mode{Direct, Balanced} {
		l, err := NewLocal(mode, 3, nil)
		require.NoError(t, err)
		d, err := l.Launch(context.Background(), table, SplitSeeds(walk.NewRand(1), 3))
		require.NoError(t, err)

		paths, err := d.Dispatch(ctx, testJobs(50))
		assert.Nil(t, paths)
		assert.ErrorIs(t, err, context.Canceled)
		require.NoError(t, d.Close())
	}
}

func TestLocalLauncher(t *testing.T) {
	_, err := NewLocal(Remote, 2, nil)
	assert.Error(t, err)

	l, err := NewLocal(Balanced, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Workers())
	assert.Equal(t, Balanced, l.Mode())

	_, err = l.Launch(context.Background(), testTable(t), []uint64{1, 2})
	assert.Error(t, err, "seed count must match workers")

	_, err = NewDirect(nil, 1, []uint64{1}, nil)
	assert.Error(t, err)
}
