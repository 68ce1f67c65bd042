package stats

// Decomposition splits activity into the share explained by the system-wide
// signal (external) and the node's own deviation from it (internal).
type Decomposition struct {
	Internal *Matrix
	External *Matrix
	// Std of each component per node.
	InternalStd []float64
	ExternalStd []float64
}

// Fluctuations decomposes m. Node i's external activity at t is its share
// of all activity times the total at t:
//
//	external[i,t] = (sum_t a[i,t] / sum a) * sum_i a[i,t]
//	internal[i,t] = a[i,t] - external[i,t]
//
// A matrix without activity has zero external part.
func Fluctuations(m *Matrix) *Decomposition {
	d := &Decomposition{
		Internal:    NewMatrix(m.Rows, m.Cols),
		External:    NewMatrix(m.Rows, m.Cols),
		InternalStd: make([]float64, m.Rows),
		ExternalStd: make([]float64, m.Rows),
	}

	total := m.Sum()
	colSums := make([]float64, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for t, v := range m.Row(i) {
			colSums[t] += v
		}
	}

	for i := 0; i < m.Rows; i++ {
		fraction := 0.0
		if total != 0 {
			rowSum := 0.0
			for _, v := range m.Row(i) {
				rowSum += v
			}
			fraction = rowSum / total
		}
		for t := 0; t < m.Cols; t++ {
			ext := fraction * colSums[t]
			d.External.Set(i, t, ext)
			d.Internal.Set(i, t, m.At(i, t)-ext)
		}
		_, d.InternalStd[i] = meanStd(d.Internal.Row(i))
		_, d.ExternalStd[i] = meanStd(d.External.Row(i))
	}
	return d
}
