package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/cluso-foggy/pkg/march"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
graphs:
  - path: nets/er.txt
    type: erdos_renyi
  - path: nets/ba.yaml
    format: yaml
walk_type: buffered
walker_factors: [1, 2]
variation_factors: [0, 0.5]
steps_factors: [0.5]
capacity: degree
capacity_factors: [0.8, 1.2]
time_points: 50
transient: 3
visit_value: degree
alpha: 0.75
repetition: 2
seed: 42
workers: 4
dispatch: balanced
backlog: unbounded
output:
  dir: out
  s3:
    bucket: sims
    prefix: foggy
logging:
  level: debug
`

func noEnv(string) (string, bool) { return "", false }

func parseNoEnv(t *testing.T, data string) (*Experiment, error) {
	t.Helper()
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvOutputDir, "")
	return Parse([]byte(data))
}

func TestParseSample(t *testing.T) {
	exp, err := parseNoEnv(t, sample)
	require.NoError(t, err)

	assert.Len(t, exp.Graphs, 2)
	assert.Equal(t, march.Buffered, exp.Policy())
	assert.True(t, exp.Constrained())
	assert.Equal(t, parallel.Balanced, exp.Mode())
	assert.Equal(t, march.BacklogUnbounded, exp.BacklogPolicy().Mode)
	require.NotNil(t, exp.Seed)
	assert.Equal(t, uint64(42), *exp.Seed)
	assert.Equal(t, "sims", exp.Output.S3.Bucket)
	assert.Equal(t, "debug", exp.Logging.Level)
	// defaults survive fields the document leaves out
	assert.Equal(t, 1.0, exp.Nu)
	assert.Equal(t, "uniform", exp.WalkerDist)
}

func TestDefaultNeedsOnlyGraphs(t *testing.T) {
	exp := Default()
	assert.ErrorIs(t, exp.Validate(), ErrInvalid)

	exp.Graphs = []GraphSource{{Path: "g.txt"}}
	require.NoError(t, exp.Validate())
	assert.Equal(t, march.Unconstrained, exp.Policy())
	assert.Equal(t, parallel.Direct, exp.Mode())
	assert.Equal(t, march.BacklogTruncate, exp.BacklogPolicy().Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Experiment)
		errMsg string
	}{
		{"unknown walk type", func(e *Experiment) { e.WalkType = "sideways" }, "walk_type"},
		{"empty walker factors", func(e *Experiment) { e.WalkerFactors = nil }, "walker_factors"},
		{"zero walker factor", func(e *Experiment) { e.WalkerFactors = []float64{0} }, "walker_factors[0]"},
		{"negative variation", func(e *Experiment) { e.VariationFactors = []float64{-1} }, "variation_factors[0]"},
		{"no time points", func(e *Experiment) { e.TimePoints = 0 }, "time_points"},
		{"negative transient", func(e *Experiment) { e.Transient = -1 }, "transient"},
		{"no repetition", func(e *Experiment) { e.Repetition = 0 }, "repetition"},
		{"no workers", func(e *Experiment) { e.Workers = 0 }, "workers"},
		{"bad dispatch", func(e *Experiment) { e.Dispatch = "carrier-pigeon" }, "dispatch"},
		{"remote without workers", func(e *Experiment) { e.Dispatch = "remote" }, "remote_workers"},
		{"missing graph path", func(e *Experiment) { e.Graphs = []GraphSource{{}} }, "graphs[0].path"},
		{"missing output dir", func(e *Experiment) { e.Output.Dir = "" }, "output.dir"},
		{"bad log level", func(e *Experiment) { e.Logging.Level = "loud" }, "logging.level"},
		{"deletory without capacity", func(e *Experiment) { e.WalkType = "deletory" }, "capacity"},
		{"buffered without factors", func(e *Experiment) {
			e.WalkType = "buffered"
			e.Capacity = "uniform"
			e.CapacityFactors = nil
		}, "capacity_factors"},
		{"degree value at alpha one", func(e *Experiment) {
			e.VisitValue = "degree"
			e.Alpha = 1
		}, "alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := Default()
			exp.Graphs = []GraphSource{{Path: "g.txt"}}
			tt.mutate(exp)

			err := exp.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateReportsEveryFailure(t *testing.T) {
	exp := Default()
	exp.Graphs = []GraphSource{{Path: "g.txt"}}
	exp.TimePoints = 0
	exp.Workers = 0

	err := exp.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time_points")
	assert.Contains(t, err.Error(), "workers")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := parseNoEnv(t, "graphs: [{path: g.txt}]\nwalkers: 3\n")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParallelAlias(t *testing.T) {
	exp, err := parseNoEnv(t, "graphs: [{path: g.txt}]\nwalk_type: parallel\n")
	require.NoError(t, err)
	assert.Equal(t, march.Unconstrained, exp.Policy())
	assert.False(t, exp.Constrained())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:  "WARN",
		EnvWorkers:   "8",
		EnvOutputDir: "/tmp/foggy",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	exp := Default()
	require.NoError(t, exp.ApplyEnv(lookup))
	assert.Equal(t, "warn", exp.Logging.Level)
	assert.Equal(t, 8, exp.Workers)
	assert.Equal(t, "/tmp/foggy", exp.Output.Dir)

	exp = Default()
	require.NoError(t, exp.ApplyEnv(noEnv))
	assert.Equal(t, Default(), exp)

	env[EnvWorkers] = "many"
	assert.ErrorIs(t, Default().ApplyEnv(lookup), ErrInvalid)
}

func TestLoadAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graphs: [{path: g.txt}]\nworkers: 2\n"), 0o644))

	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvOutputDir, "")
	t.Setenv(EnvWorkers, "6")
	exp, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, exp.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRuns(t *testing.T) {
	exp, err := parseNoEnv(t, sample)
	require.NoError(t, err)

	runs := exp.Runs()
	// 2 graphs x 2 walker x 2 variation x 1 steps x 2 capacity x 2 repetitions
	require.Len(t, runs, 32)

	for i, r := range runs {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, march.Buffered, r.Policy)
		require.NotNil(t, r.Seed)
		assert.Equal(t, uint64(42+i), *r.Seed)
	}

	first := runs[0]
	assert.Equal(t, "nets/er.txt", first.Graph.Path)
	assert.Equal(t, 1.0, first.WalkerFactor)
	assert.Equal(t, 0.0, first.VariationFactor)
	assert.Equal(t, 0.8, first.CapacityFactor)
	assert.Equal(t, 0, first.Repetition)
	assert.Equal(t, 1, runs[1].Repetition)
	assert.Equal(t, 1.2, runs[2].CapacityFactor)
	assert.Equal(t, "nets/ba.yaml", runs[16].Graph.Path)
}

func TestRunsUnconstrainedIgnoreCapacity(t *testing.T) {
	exp := Default()
	exp.Graphs = []GraphSource{{Path: "g.txt"}}
	exp.CapacityFactors = []float64{1, 2, 3}
	exp.Repetition = 3

	runs := exp.Runs()
	require.Len(t, runs, 3)
	for _, r := range runs {
		assert.Zero(t, r.CapacityFactor)
		assert.Nil(t, r.Seed)
	}
}

func TestRunSizes(t *testing.T) {
	r := Run{WalkerFactor: 2, VariationFactor: 0.25, StepsFactor: 0.5}
	assert.Equal(t, 200, r.Walkers(100))
	assert.Equal(t, 50, r.Variation(100))
	assert.Equal(t, 50, r.Steps(100))
}
