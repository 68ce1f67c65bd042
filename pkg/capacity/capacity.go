// Package capacity builds per-node throughput limits for constrained marches.
//
// A capacity is the largest activity a node accepts within one time step.
// Both policies spread the expected number of visits of a march, mid
// arrivals per step times the step budget, over the nodes and scale it by a
// factor.
package capacity

import (
	"errors"
	"fmt"
	"math"

	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

var (
	ErrNegative = errors.New("capacity must be non-negative and finite")
	ErrLength   = errors.New("capacity length does not match node count")
)

// Vector holds one capacity per node index.
type Vector []float64

// DegreeSource reports (optionally weighted) node degrees.
type DegreeSource interface {
	Degree(id int64, weightKey string) float64
}

// Uniform gives every one of n nodes factor*mid*steps/n.
func Uniform(n, mid, steps int, factor float64) (Vector, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n=%d", ErrLength, n)
	}
	c := factor * float64(mid) * float64(steps) / float64(n)
	v := make(Vector, n)
	for i := range v {
		v[i] = c
	}
	return v, Validate(v, n)
}

// Degree gives node i factor*deg(i)*mid*steps/sum(deg).
func Degree(g DegreeSource, index *walk.NodeIndex, mid, steps int, factor float64, weightKey string) (Vector, error) {
	n := index.Len()
	degrees := make([]float64, n)
	total := 0.0
	for i := range degrees {
		degrees[i] = g.Degree(index.ID(i), weightKey)
		total += degrees[i]
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: graph has no edges", ErrNegative)
	}
	v := make(Vector, n)
	scale := factor * float64(mid) * float64(steps) / total
	for i, d := range degrees {
		v[i] = d * scale
	}
	return v, Validate(v, n)
}

// Validate checks the length and that every entry is a finite non-negative
// number.
func Validate(v Vector, n int) error {
	if len(v) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrLength, len(v), n)
	}
	for i, c := range v {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: node %d has %v", ErrNegative, i, c)
		}
	}
	return nil
}

// Total sums the vector.
func Total(v Vector) float64 {
	t := 0.0
	for _, c := range v {
		t += c
	}
	return t
}
