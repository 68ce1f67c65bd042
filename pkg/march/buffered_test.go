package march

import (
	"context"
	"testing"

	"github.com/dd0wney/cluso-foggy/pkg/capacity"
	"github.com/dd0wney/cluso-foggy/pkg/graph"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBuffered_RejectedWalkerResumes(t *testing.T) {
	tests := []struct {
		name      string
		transient int
		total     float64
	}{
		{"no transient", 0, 10},
		// the replay is not cut again
		{"transient", 1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(t, parallel.Direct, 1)
			cfg := baseConfig(t, chain(t, 5))
			cfg.Sources = []int32{0}
			cfg.Arrivals = &scripted{counts: []int{2}}
			cfg.TimePoints = 3
			cfg.MaxSteps = 4
			cfg.Transient = tt.transient
			cfg.Launcher = rec

			res, err := RunBuffered(context.Background(), cfg, capacity.Vector{2, 2, 1, 2, 2}, BacklogPolicy{})
			require.NoError(t, err)

			// the second walker is turned away at node 2 after two steps
			assert.Equal(t, int64(1), res.Backlog.At(2, 0))
			assert.Equal(t, int64(1), res.Backlog.Total())
			require.Len(t, rec.jobs, 2)
			assert.Equal(t, []parallel.Job{{Start: 2, Budget: 2}}, rec.jobs[1])

			assert.Equal(t, []float64{0, 0, 1, 1, 1}, res.Matrix.Column(1))
			assert.Equal(t, []float64{0, 0, 0, 0, 0}, res.Matrix.Column(2))
			assert.Equal(t, tt.total, res.Matrix.Sum())
			assert.Equal(t, 0, res.Remaining)
			assert.Equal(t, 0, res.DroppedTotal())
			assert.Equal(t, int64(2), res.Walkers)
		})
	}
}

func TestRunBuffered_BoundDropsAreCounted(t *testing.T) {
	// node 1 never admits anyone; node 0 admits one walker per step
	caps := capacity.Vector{1, 0}
	newCfg := func(reg *metrics.Registry) Config {
		cfg := baseConfig(t, chain(t, 2))
		cfg.Sources = []int32{0}
		cfg.Arrivals = constant(t, 3)
		cfg.TimePoints = 2
		cfg.MaxSteps = 1
		cfg.Metrics = reg
		return cfg
	}

	t.Run("truncate", func(t *testing.T) {
		reg := metrics.NewRegistry()
		res, err := RunBuffered(context.Background(), newCfg(reg), caps, BacklogPolicy{Mode: BacklogTruncate})
		require.NoError(t, err)

		// three waiting walkers meet a bound of floor(1 x 1)
		assert.Equal(t, []int{0, 2}, res.Dropped)
		assert.Equal(t, 4, res.Remaining)
		assert.Equal(t, []int64{2, 2}, res.Backlog.Row(0))
		assert.Equal(t, []int64{1, 2}, res.Backlog.Row(1))
		assert.Equal(t, []float64{1, 1}, res.Matrix.Row(0))

		var m dto.Metric
		require.NoError(t, reg.BacklogDroppedTotal.Write(&m))
		assert.Equal(t, 2.0, m.Counter.GetValue())
		require.NoError(t, reg.BacklogSize.Write(&m))
		assert.Equal(t, 4.0, m.Gauge.GetValue())
		require.NoError(t, reg.WalkersTotal.WithLabelValues("buffered", metrics.OriginBacklog).Write(&m))
		assert.Equal(t, 1.0, m.Counter.GetValue())
	})

	t.Run("unbounded", func(t *testing.T) {
		res, err := RunBuffered(context.Background(), newCfg(nil), caps, BacklogPolicy{Mode: BacklogUnbounded})
		require.NoError(t, err)

		assert.Equal(t, []int{0, 0}, res.Dropped)
		assert.Equal(t, 6, res.Remaining)
		assert.Equal(t, []int64{2, 4}, res.Backlog.Row(0))
		assert.Equal(t, []int64{1, 2}, res.Backlog.Row(1))
		assert.Equal(t, []float64{1, 1}, res.Matrix.Row(0))
	})
}

func TestRunBuffered_TruncatesOnZeroArrivalSteps(t *testing.T) {
	cfg := baseConfig(t, chain(t, 2))
	cfg.Sources = []int32{0}
	cfg.Arrivals = &scripted{counts: []int{4}}
	cfg.TimePoints = 3
	cfg.MaxSteps = 1

	var progress []Progress
	cfg.Progress = func(p Progress) { progress = append(progress, p) }

	res, err := RunBuffered(context.Background(), cfg, capacity.Vector{0.5, 0}, BacklogPolicy{})
	require.NoError(t, err)

	// step 0 parks all four walkers; bounds are floor(0.5 x 2) then floor(0.5 x 1)
	assert.Equal(t, []int{0, 3, 1}, res.Dropped)
	assert.Equal(t, 0, res.Remaining)
	require.Len(t, progress, 3)
	assert.Equal(t, 3, progress[1].Dropped)
	assert.Equal(t, 1, progress[1].Backlog)
	assert.Equal(t, 1, progress[1].Walkers)
}

func TestRunBuffered_Reproducible(t *testing.T) {
	table := buildTable(t, graph.Random(40, 0.12, false, walk.NewRand(21)))
	caps, err := capacity.Uniform(table.Len(), 15, 6, 0.4)
	require.NoError(t, err)

	run := func() *BufferedResult {
		l, err := parallel.NewLocal(parallel.Direct, 3, nil)
		require.NoError(t, err)
		cfg := baseConfig(t, table)
		cfg.Arrivals = mustInterval(t, 15, 5)
		cfg.TimePoints = 25
		cfg.MaxSteps = 6
		cfg.Transient = 1
		cfg.Launcher = l
		cfg.Seed = Seed(1234)
		res, err := RunBuffered(context.Background(), cfg, caps, BacklogPolicy{})
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.Equal(t, a.Matrix.Data, b.Matrix.Data)
	assert.Equal(t, a.Backlog.Data, b.Backlog.Data)
	assert.Equal(t, a.Dropped, b.Dropped)
	assert.Equal(t, a.Remaining, b.Remaining)
	assert.Greater(t, a.Backlog.Total(), int64(0), "capacity should bind")
}

func TestRunBuffered_BalancedCompletes(t *testing.T) {
	table := buildTable(t, graph.Random(30, 0.15, false, walk.NewRand(2)))
	caps, err := capacity.Uniform(table.Len(), 10, 5, 0.5)
	require.NoError(t, err)

	l, err := parallel.NewLocal(parallel.Balanced, 4, nil)
	require.NoError(t, err)
	cfg := baseConfig(t, table)
	cfg.Launcher = l
	cfg.Arrivals = constant(t, 10)

	res, err := RunBuffered(context.Background(), cfg, caps, BacklogPolicy{})
	require.NoError(t, err)
	for i := 0; i < table.Len(); i++ {
		for step := 0; step < cfg.TimePoints; step++ {
			assert.LessOrEqual(t, res.Matrix.At(i, step), caps[i]+1)
		}
	}
}

func TestReplayFirst(t *testing.T) {
	paths := []parallel.Path{{Job: 3}, {Job: 0}, {Job: 4}, {Job: 1}, {Job: 2}}
	got := replayFirst(paths, 2)

	jobs := make([]int, len(got))
	for i, p := range got {
		jobs[i] = p.Job
	}
	assert.Equal(t, []int{0, 1, 3, 4, 2}, jobs)
	assert.Equal(t, paths, replayFirst(paths, 0))
}

func TestBacklog(t *testing.T) {
	var b Backlog
	for i := 0; i < 5; i++ {
		b.Push(Walker{Node: int32(i), Elapsed: i})
	}
	assert.Equal(t, 0, b.Truncate(10))
	assert.Equal(t, 2, b.Truncate(3))
	assert.Equal(t, []Walker{{0, 0}, {1, 1}, {2, 2}}, b.Walkers())
	assert.Equal(t, 3, b.Truncate(-1))
	assert.Equal(t, 0, b.Len())
}

func TestBacklogPolicy(t *testing.T) {
	assert.Equal(t, 7, BacklogPolicy{}.limit(2.5, 3))
	assert.Equal(t, 0, BacklogPolicy{}.limit(0, 10))
	assert.Equal(t, -1, BacklogPolicy{Mode: BacklogUnbounded}.limit(2.5, 3))

	for in, want := range map[string]BacklogMode{"": BacklogTruncate, "truncate": BacklogTruncate, "Unbounded": BacklogUnbounded} {
		got, err := ParseBacklogMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBacklogMode("lossy")
	assert.Error(t, err)
	assert.Equal(t, "unbounded", BacklogUnbounded.String())
}
