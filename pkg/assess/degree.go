package assess

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

// DegreeSource reports (optionally weighted) node degrees. Directed graphs
// count in- plus out-degree.
type DegreeSource interface {
	Degree(id int64, weightKey string) float64
}

// Degree values a visit at degree^mu, precomputed per node index.
type Degree struct {
	values []float64
	mu     float64
}

// NewDegree precomputes degree^mu for every node in index.
func NewDegree(g DegreeSource, index *walk.NodeIndex, mu float64, weightKey string) (*Degree, error) {
	if err := checkFinite(mu); err != nil {
		return nil, fmt.Errorf("mu: %w", err)
	}
	d := &Degree{values: make([]float64, index.Len()), mu: mu}
	for i := range d.values {
		deg := g.Degree(index.ID(i), weightKey)
		d.values[i] = math.Pow(deg, mu)
	}
	return d, nil
}

// Value implements Assessor.
func (d *Degree) Value(i int32) float64 { return d.values[i] }

// Mu returns the exponent.
func (d *Degree) Mu() float64 { return d.mu }

// Values returns a copy of the per-node values.
func (d *Degree) Values() []float64 {
	return append([]float64(nil), d.values...)
}
