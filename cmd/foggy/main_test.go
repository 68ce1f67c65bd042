package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dd0wney/cluso-foggy/pkg/config"
	"github.com/dd0wney/cluso-foggy/pkg/march"
	"github.com/dd0wney/cluso-foggy/pkg/results"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
	"github.com/dd0wney/cluso-foggy/pkg/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "foggy version "+version)
}

func TestMuCommand(t *testing.T) {
	out, err := execute(t, "mu", "--alpha", "0.75")
	require.NoError(t, err)
	assert.Equal(t, "mu = 1\n", out)

	out, err = execute(t, "mu", "--mu", "1")
	require.NoError(t, err)
	assert.Equal(t, "alpha = 0.75\n", out)

	_, err = execute(t, "mu", "--alpha", "1")
	assert.Error(t, err)

	_, err = execute(t, "mu")
	assert.Error(t, err)

	_, err = execute(t, "mu", "--alpha", "0.5", "--mu", "1")
	assert.Error(t, err)
}

func TestInfoCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "two.txt", "0 1\n1 2\n3 4\n")

	out, err := execute(t, "info", path)
	require.NoError(t, err)
	assert.Regexp(t, `nodes\s+│\s+5`, out)
	assert.Regexp(t, `edges\s+│\s+3`, out)
	assert.Regexp(t, `components\s+│\s+2`, out)
	assert.Regexp(t, `largest component\s+│\s+3`, out)
	assert.Regexp(t, `sinks\s+│\s+0`, out)
	assert.Regexp(t, `mean degree\s+│\s+1.2`, out)

	out, err = execute(t, "info", path, "--directed")
	require.NoError(t, err)
	assert.Regexp(t, `directed\s+│\s+true`, out)
	assert.Regexp(t, `sinks\s+│\s+2`, out)

	_, err = execute(t, "info", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFluctuationsCommand(t *testing.T) {
	m, err := stats.MatrixFrom(3, 4, []float64{
		1, 2, 3, 2,
		0, 0, 0, 0,
		4, 4, 4, 4,
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), results.FileActivity)
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = results.WriteMatrix(f, m)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := execute(t, "fluctuations", path)
	require.NoError(t, err)
	assert.Contains(t, out, "internal std")
	// borders and header take four lines
	assert.Equal(t, 4+3, strings.Count(out, "\n"))

	out, err = execute(t, "fluctuations", path, "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 4+1, strings.Count(out, "\n"))

	_, err = execute(t, "fluctuations", writeFile(t, t.TempDir(), "junk.fgy", "junk"))
	assert.ErrorIs(t, err, results.ErrFormat)
}

func TestMarchCommand(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeFile(t, dir, "ring.txt", "0 1\n1 2\n2 3\n3 4\n4 0\n")
	outDir := filepath.Join(dir, "results")
	cfg := writeFile(t, dir, "experiment.yaml", `
graphs:
  - path: `+graphPath+`
    type: ring
walk_type: deletory
walker_factors: [2]
variation_factors: [0.5]
steps_factors: [1]
capacity: uniform
capacity_factors: [0.5, 1]
time_points: 8
seed: 7
workers: 2
output:
  dir: `+outDir+`
logging:
  level: error
`)

	out, err := execute(t, "march", "-c", cfg, "--concurrency", "2")
	require.NoError(t, err)
	assert.Equal(t, "2 runs written to "+outDir+"\n", out)

	runs, err := results.ReadRuns(outDir)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	nodes, err := results.ReadNodes(outDir)
	require.NoError(t, err)
	assert.Len(t, nodes, 10)

	activity := filepath.Join(outDir, runs[0].SimID, results.FileActivity)
	out, err = execute(t, "fluctuations", activity)
	require.NoError(t, err)
	assert.Equal(t, 4+5, strings.Count(out, "\n"))
}

func TestMarchCommandErrors(t *testing.T) {
	_, err := execute(t, "march", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg := writeFile(t, t.TempDir(), "bad.yaml", "walk_type: sideways\n")
	_, err = execute(t, "march", "-c", cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestProgressModel(t *testing.T) {
	cancelled := false
	m := newProgressModel(2, func() { cancelled = true })

	run := config.Run{Index: 0, Policy: march.Buffered}
	next, _ := m.Update(eventMsg(sweep.Event{
		Run:   run,
		Total: 2,
		Step:  march.Progress{Step: 4, TimePoints: 10, Fraction: 0.5, Walkers: 12, Backlog: 3},
	}))
	m = next.(progressModel)
	assert.InDelta(t, 0.25, m.fraction(), 1e-12)
	assert.Contains(t, m.View(), "step 5/10")
	assert.Contains(t, m.View(), "backlog 3")

	next, _ = m.Update(eventMsg(sweep.Event{Run: run, Total: 2, Done: true}))
	m = next.(progressModel)
	assert.Equal(t, 1, m.done)
	assert.Empty(t, m.active)
	assert.InDelta(t, 0.5, m.fraction(), 1e-12)

	next, _ = m.Update(eventMsg(sweep.Event{Run: config.Run{Index: 1}, Done: true, Err: errors.New("boom")}))
	m = next.(progressModel)
	assert.Equal(t, 1, m.failed)

	m.cancel = func() { cancelled = true }
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(progressModel)
	assert.True(t, cancelled)
	assert.True(t, m.stopping)

	next, cmd := m.Update(finishedMsg{runs: 1, err: context.Canceled})
	m = next.(progressModel)
	assert.NotNil(t, cmd)
	assert.ErrorIs(t, m.err, context.Canceled)
	assert.Contains(t, m.View(), "failed")
}

func TestRunTally(t *testing.T) {
	var tally runTally
	tally.observe(sweep.Event{Step: march.Progress{Step: 1}})
	tally.observe(sweep.Event{Done: true})
	tally.observe(sweep.Event{Done: true})
	tally.observe(sweep.Event{Done: true, Err: errors.New("boom")})

	done, failed := tally.counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, failed)
}
