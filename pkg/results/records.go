// Package results persists march outcomes: matrix files, run and node
// records, and their upload to Postgres or S3.
package results

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/capacity"
	"github.com/dd0wney/cluso-foggy/pkg/stats"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"github.com/google/uuid"
)

// NewSimID returns a fresh simulation id: a random UUID without dashes.
func NewSimID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RunRecord describes one march.
type RunRecord struct {
	SimID           string    `json:"sim_id"`
	WalkSetup       string    `json:"walk_setup"`
	WalkType        string    `json:"walk_type"`
	WalkerDist      string    `json:"walker_dist"`
	Walkers         int       `json:"walkers"`
	Variation       int       `json:"variation"`
	VisitValue      string    `json:"visit_value"`
	WalkerFactor    float64   `json:"walker_factor"`
	VariationFactor float64   `json:"variation_factor"`
	StepsFactor     float64   `json:"steps_factor"`
	Steps           int       `json:"steps"`
	TimePoints      int       `json:"time_points"`
	Transient       int       `json:"transient"`
	GraphName       string    `json:"graph_name"`
	GraphType       string    `json:"graph_type"`
	Directed        bool      `json:"directed"`
	Nodes           int       `json:"nodes"`
	Edges           int       `json:"edges"`
	Capacity        string    `json:"capacity,omitempty"`
	CapacityFactor  float64   `json:"capacity_factor,omitempty"`
	Seed            uint64    `json:"seed"`
	Workers         int       `json:"workers"`
	Dispatch        string    `json:"dispatch"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DroppedTotal    int       `json:"dropped_total"`
	Remaining       int       `json:"remaining"`
}

// NodeRecord summarizes one node over a march.
type NodeRecord struct {
	SimID         string  `json:"sim_id"`
	NodeID        int64   `json:"node_id"`
	Degree        float64 `json:"degree"`
	InDegree      float64 `json:"in_degree"`
	OutDegree     float64 `json:"out_degree"`
	MeanActivity  float64 `json:"mean_activity"`
	StdActivity   float64 `json:"std_activity"`
	InternalStd   float64 `json:"internal_std"`
	ExternalStd   float64 `json:"external_std"`
	Capacity      float64 `json:"capacity,omitempty"`
	MeanRejected  float64 `json:"mean_rejected"`
	StdRejected   float64 `json:"std_rejected"`
	TotalRejected int64   `json:"total_rejected"`
}

// DegreeSource supplies node degrees, e.g. *graph.Graph.
type DegreeSource interface {
	Degree(id int64, weightKey string) float64
	InDegree(id int64, weightKey string) float64
	OutDegree(id int64, weightKey string) float64
}

// Outcome is what Summarize reads from a march. Rejected and Capacity are
// nil for unconstrained walks.
type Outcome struct {
	Activity *stats.Matrix
	// Summary replaces Activity for iterative walks, which keep no matrix.
	Summary  *stats.Summary
	Rejected *stats.CountMatrix
	Capacity capacity.Vector
}

// Summarize builds one record per node of index.
func Summarize(simID string, g DegreeSource, index *walk.NodeIndex, weightKey string, out Outcome) ([]NodeRecord, error) {
	n := index.Len()

	var (
		summary *stats.Summary
		fluct   *stats.Decomposition
	)
	switch {
	case out.Activity != nil:
		if out.Activity.Rows != n {
			return nil, fmt.Errorf("activity has %d rows for %d nodes", out.Activity.Rows, n)
		}
		summary = stats.SummarizeRows(out.Activity)
		fluct = stats.Fluctuations(out.Activity)
	case out.Summary != nil:
		if len(out.Summary.Mean) != n {
			return nil, fmt.Errorf("summary has %d nodes, index %d", len(out.Summary.Mean), n)
		}
		summary = out.Summary
	default:
		return nil, errors.New("outcome carries no activity")
	}

	var rejected *stats.Summary
	if out.Rejected != nil {
		if out.Rejected.Rows != n {
			return nil, fmt.Errorf("rejections have %d rows for %d nodes", out.Rejected.Rows, n)
		}
		rejected = stats.SummarizeRows(out.Rejected.Float())
	}
	if out.Capacity != nil {
		if err := capacity.Validate(out.Capacity, n); err != nil {
			return nil, err
		}
	}

	records := make([]NodeRecord, n)
	for i := range records {
		id := index.ID(i)
		rec := NodeRecord{
			SimID:        simID,
			NodeID:       id,
			Degree:       g.Degree(id, weightKey),
			InDegree:     g.InDegree(id, weightKey),
			OutDegree:    g.OutDegree(id, weightKey),
			MeanActivity: summary.Mean[i],
			StdActivity:  summary.Std[i],
		}
		if fluct != nil {
			rec.InternalStd = fluct.InternalStd[i]
			rec.ExternalStd = fluct.ExternalStd[i]
		}
		if out.Capacity != nil {
			rec.Capacity = out.Capacity[i]
		}
		if rejected != nil {
			rec.MeanRejected = rejected.Mean[i]
			rec.StdRejected = rejected.Std[i]
			for _, c := range out.Rejected.Row(i) {
				rec.TotalRejected += c
			}
		}
		records[i] = rec
	}
	return records, nil
}
