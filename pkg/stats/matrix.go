// Package stats records per-node activity over time and summarises it.
package stats

import "fmt"

// Matrix is a dense rows x cols float64 matrix stored row-major. Rows are
// nodes and columns are time steps.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix returns a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// MatrixFrom wraps data, which must hold rows*cols values.
func MatrixFrom(rows, cols int, data []float64) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix %dx%d needs %d values, got %d", rows, cols, rows*cols, len(data))
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// At returns the value at (i, t).
func (m *Matrix) At(i, t int) float64 { return m.Data[i*m.Cols+t] }

// Set stores v at (i, t).
func (m *Matrix) Set(i, t int, v float64) { m.Data[i*m.Cols+t] = v }

// Add adds v to (i, t).
func (m *Matrix) Add(i, t int, v float64) { m.Data[i*m.Cols+t] += v }

// Row returns node i's series. The slice aliases the matrix.
func (m *Matrix) Row(i int) []float64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// Column copies time step t.
func (m *Matrix) Column(t int) []float64 {
	col := make([]float64, m.Rows)
	for i := range col {
		col[i] = m.Data[i*m.Cols+t]
	}
	return col
}

// Sum returns the total over all cells.
func (m *Matrix) Sum() float64 {
	s := 0.0
	for _, v := range m.Data {
		s += v
	}
	return s
}

// CountMatrix is Matrix for event counts.
type CountMatrix struct {
	Rows, Cols int
	Data       []int64
}

// NewCountMatrix returns a zeroed rows x cols count matrix.
func NewCountMatrix(rows, cols int) *CountMatrix {
	return &CountMatrix{Rows: rows, Cols: cols, Data: make([]int64, rows*cols)}
}

// At returns the count at (i, t).
func (m *CountMatrix) At(i, t int) int64 { return m.Data[i*m.Cols+t] }

// Inc adds one to (i, t).
func (m *CountMatrix) Inc(i, t int) { m.Data[i*m.Cols+t]++ }

// Row returns node i's counts. The slice aliases the matrix.
func (m *CountMatrix) Row(i int) []int64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// ColumnSum totals time step t over all nodes.
func (m *CountMatrix) ColumnSum(t int) int64 {
	var s int64
	for i := 0; i < m.Rows; i++ {
		s += m.Data[i*m.Cols+t]
	}
	return s
}

// Total sums every cell.
func (m *CountMatrix) Total() int64 {
	var s int64
	for _, v := range m.Data {
		s += v
	}
	return s
}

// Float converts the counts to a Matrix.
func (m *CountMatrix) Float() *Matrix {
	f := NewMatrix(m.Rows, m.Cols)
	for i, v := range m.Data {
		f.Data[i] = float64(v)
	}
	return f
}
