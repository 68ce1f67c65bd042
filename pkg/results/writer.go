package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
)

// File names inside a run directory.
const (
	FileActivity = "activity" + Extension
	FileRejected = "rejected" + Extension
	FileBacklog  = "backlog" + Extension
	FileMean     = "mean" + Extension
	FileStd      = "std" + Extension
)

// Writer lays result files out as <Dir>/<simID>/<name>.
type Writer struct {
	Dir     string
	Metrics *metrics.Registry
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, m *metrics.Registry) *Writer {
	return &Writer{Dir: dir, Metrics: m}
}

// RunDir returns the directory of a run.
func (w *Writer) RunDir(simID string) string {
	return filepath.Join(w.Dir, simID)
}

// WriteMatrix stores a float matrix and returns its path.
func (w *Writer) WriteMatrix(simID, name string, m *stats.Matrix) (string, error) {
	return w.write(simID, name, func(f *os.File) (int64, error) {
		return WriteMatrix(f, m)
	})
}

// WriteCounts stores a count matrix and returns its path.
func (w *Writer) WriteCounts(simID, name string, m *stats.CountMatrix) (string, error) {
	return w.write(simID, name, func(f *os.File) (int64, error) {
		return WriteCounts(f, m)
	})
}

// WriteSummary stores the per-node mean and std of an iterative march as
// two single-column matrices.
func (w *Writer) WriteSummary(simID string, s *stats.Summary) ([]string, error) {
	n := len(s.Mean)
	mean, err := stats.MatrixFrom(n, 1, s.Mean)
	if err != nil {
		return nil, err
	}
	std, err := stats.MatrixFrom(n, 1, s.Std)
	if err != nil {
		return nil, err
	}

	meanPath, err := w.WriteMatrix(simID, FileMean, mean)
	if err != nil {
		return nil, err
	}
	stdPath, err := w.WriteMatrix(simID, FileStd, std)
	if err != nil {
		return nil, err
	}
	return []string{meanPath, stdPath}, nil
}

// write creates the file through a temporary sibling so readers never see
// a partial matrix.
func (w *Writer) write(simID, name string, fn func(*os.File) (int64, error)) (path string, err error) {
	defer func() {
		if err != nil {
			w.Metrics.RecordResults("file", 0, err)
		}
	}()

	dir := w.RunDir(simID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}

	n, err := fn(tmp)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	path = filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	w.Metrics.RecordResults("file", int(n), nil)
	return path, nil
}
