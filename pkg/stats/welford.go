package stats

import "math"

// Summary is the per-node mean and sample standard deviation of activity.
type Summary struct {
	Mean []float64
	Std  []float64
	// Count is the number of time steps folded in.
	Count int
}

// Accumulator keeps running per-node means and squared deviations using
// Welford's method, one vector per time step. It belongs to a single
// controller and is not safe for concurrent use.
type Accumulator struct {
	n    int
	mean []float64
	m2   []float64
}

// NewAccumulator tracks size nodes.
func NewAccumulator(size int) *Accumulator {
	return &Accumulator{mean: make([]float64, size), m2: make([]float64, size)}
}

// Add folds one step. x must have one entry per node.
func (a *Accumulator) Add(x []float64) {
	a.n++
	n := float64(a.n)
	for i, v := range x {
		delta := v - a.mean[i]
		a.mean[i] += delta / n
		a.m2[i] += delta * (v - a.mean[i])
	}
}

// Count returns the number of steps folded.
func (a *Accumulator) Count() int { return a.n }

// Mean returns a copy of the running means.
func (a *Accumulator) Mean() []float64 {
	return append([]float64(nil), a.mean...)
}

// Std returns the sample standard deviations, zero with fewer than two steps.
func (a *Accumulator) Std() []float64 {
	std := make([]float64, len(a.m2))
	if a.n < 2 {
		return std
	}
	for i, m2 := range a.m2 {
		std[i] = math.Sqrt(m2 / float64(a.n-1))
	}
	return std
}

// Summary snapshots the accumulator.
func (a *Accumulator) Summary() *Summary {
	return &Summary{Mean: a.Mean(), Std: a.Std(), Count: a.n}
}

// SummarizeRows returns each row's mean and sample standard deviation.
func SummarizeRows(m *Matrix) *Summary {
	s := &Summary{Mean: make([]float64, m.Rows), Std: make([]float64, m.Rows), Count: m.Cols}
	for i := 0; i < m.Rows; i++ {
		s.Mean[i], s.Std[i] = meanStd(m.Row(i))
	}
	return s
}

// meanStd is the two-pass mean and sample standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
