package results

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dd0wney/cluso-foggy/pkg/metrics"
)

// Store persists run and node records.
type Store interface {
	SaveRun(ctx context.Context, run RunRecord, nodes []NodeRecord) error
	Close() error
}

// JSONL file names inside the output directory.
const (
	RunsFile  = "runs.jsonl"
	NodesFile = "nodes.jsonl"
)

// JSONLStore appends records as JSON lines to runs.jsonl and nodes.jsonl.
type JSONLStore struct {
	dir     string
	metrics *metrics.Registry

	mu    sync.Mutex
	runs  *os.File
	nodes *os.File
}

// NewJSONLStore opens (or creates) the record files in dir.
func NewJSONLStore(dir string, m *metrics.Registry) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}

	runs, err := open(RunsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", RunsFile, err)
	}
	nodes, err := open(NodesFile)
	if err != nil {
		runs.Close()
		return nil, fmt.Errorf("failed to open %s: %w", NodesFile, err)
	}
	return &JSONLStore{dir: dir, metrics: m, runs: runs, nodes: nodes}, nil
}

// SaveRun appends the run line and one line per node.
func (s *JSONLStore) SaveRun(ctx context.Context, run RunRecord, nodes []NodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runLine, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	runLine = append(runLine, '\n')

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range nodes {
		if nodes[i].SimID == "" {
			nodes[i].SimID = run.SimID
		}
		if err := enc.Encode(nodes[i]); err != nil {
			s.metrics.RecordResults("jsonl", 0, err)
			return fmt.Errorf("failed to encode node record: %w", err)
		}
	}
	if _, err := s.nodes.Write(buf.Bytes()); err != nil {
		s.metrics.RecordResults("jsonl", 0, err)
		return fmt.Errorf("failed to write %s: %w", NodesFile, err)
	}
	written := buf.Len()
	// the run line goes last so a run listed in runs.jsonl has its nodes
	if _, err := s.runs.Write(runLine); err != nil {
		s.metrics.RecordResults("jsonl", 0, err)
		return fmt.Errorf("failed to write %s: %w", RunsFile, err)
	}
	written += len(runLine)

	s.metrics.RecordResults("jsonl", written, nil)
	return nil
}

// Close closes both files.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.runs.Close()
	err2 := s.nodes.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// ReadRuns reads every run record of a JSONL output directory.
func ReadRuns(dir string) ([]RunRecord, error) {
	return readLines[RunRecord](filepath.Join(dir, RunsFile))
}

// ReadNodes reads every node record of a JSONL output directory.
func ReadNodes(dir string) ([]NodeRecord, error) {
	return readLines[NodeRecord](filepath.Join(dir, NodesFile))
}

func readLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
