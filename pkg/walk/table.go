// Package walk prepares networks for random walks and samples single walks.
//
// BuildTable turns a graph into a Table: per node, the dense indices of its
// out-neighbours and the matching cumulative transition probabilities. A
// Sampler draws paths from a Table by inverse-CDF sampling.
package walk

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-foggy/pkg/graph"
)

// Network is what the table builder needs from a graph.
type Network interface {
	Len() int
	Nodes() []int64
	Out(id int64) []*graph.Edge
}

// TableOptions configures BuildTable.
type TableOptions struct {
	// Index maps node IDs to table rows. Nil numbers nodes by ascending ID.
	Index *NodeIndex
	// WeightKey selects the edge attribute used as transition weight.
	// Empty weighs every edge 1.0; edges lacking the attribute weigh 1.0.
	WeightKey string
}

// Table holds, for every node index, its out-neighbours and the cumulative
// probability of stepping to each of them. Sinks have empty rows.
type Table struct {
	Neighbors [][]int32
	CumProbs  [][]float64
}

// cdfTolerance bounds the round-off allowed at the end of a row.
const cdfTolerance = 1e-9

// BuildTable prepares a uniform (or weighted) random walk over g. It does not
// modify g.
func BuildTable(g Network, opts TableOptions) (*Table, *NodeIndex, error) {
	nodes := g.Nodes()
	if len(nodes) < 2 {
		return nil, nil, &GraphTooSmallError{Nodes: len(nodes)}
	}

	index := opts.Index
	if index == nil {
		index = SortedIndex(nodes)
	} else if err := checkIndex(index, nodes); err != nil {
		return nil, nil, err
	}

	t := &Table{
		Neighbors: make([][]int32, len(nodes)),
		CumProbs:  make([][]float64, len(nodes)),
	}

	for _, id := range nodes {
		i, _ := index.Index(id)
		adj := g.Out(id)
		if len(adj) == 0 {
			t.Neighbors[i] = []int32{}
			t.CumProbs[i] = []float64{}
			continue
		}

		nbrs := make([]int32, len(adj))
		probs := make([]float64, len(adj))
		total := 0.0
		for j, e := range adj {
			w := graph.EdgeWeight(e, opts.WeightKey)
			if w < 0 || math.IsNaN(w) {
				return nil, nil, fmt.Errorf("%w: node %d has edge weight %v", ErrNonPositiveWeight, id, w)
			}
			k, ok := index.Index(e.Other(id))
			if !ok {
				return nil, nil, fmt.Errorf("%w: neighbour %d of node %d is not indexed", ErrIndexMismatch, e.Other(id), id)
			}
			nbrs[j] = int32(k)
			total += w
			probs[j] = total
		}
		if total <= 0 || math.IsInf(total, 0) {
			return nil, nil, fmt.Errorf("%w: node %d has total out-weight %v", ErrNonPositiveWeight, id, total)
		}
		for j := range probs {
			probs[j] /= total
		}
		t.Neighbors[i] = nbrs
		t.CumProbs[i] = probs
	}

	return t, index, nil
}

func checkIndex(index *NodeIndex, nodes []int64) error {
	if index.Len() != len(nodes) {
		return fmt.Errorf("%w: index has %d entries, graph has %d nodes", ErrIndexMismatch, index.Len(), len(nodes))
	}
	for _, id := range nodes {
		if _, ok := index.Index(id); !ok {
			return fmt.Errorf("%w: node %d is not indexed", ErrIndexMismatch, id)
		}
	}
	return nil
}

// Len returns the number of nodes.
func (t *Table) Len() int {
	return len(t.Neighbors)
}

// IsSink reports whether node i has no way out.
func (t *Table) IsSink(i int32) bool {
	return len(t.Neighbors[i]) == 0
}

// Validate checks the structural invariants: rows of equal length,
// neighbours in range, probabilities in [0,1], non-decreasing, ending at 1.
func (t *Table) Validate() error {
	if len(t.Neighbors) != len(t.CumProbs) {
		return fmt.Errorf("%w: %d neighbour rows, %d probability rows", ErrInvalidTable, len(t.Neighbors), len(t.CumProbs))
	}
	n := int32(len(t.Neighbors))
	for i := range t.Neighbors {
		nbrs, probs := t.Neighbors[i], t.CumProbs[i]
		if len(nbrs) != len(probs) {
			return fmt.Errorf("%w: row %d has %d neighbours and %d probabilities", ErrInvalidTable, i, len(nbrs), len(probs))
		}
		prev := 0.0
		for j, p := range probs {
			if nbrs[j] < 0 || nbrs[j] >= n {
				return fmt.Errorf("%w: row %d neighbour %d out of range", ErrInvalidTable, i, nbrs[j])
			}
			if p < prev || p < 0 || p > 1+cdfTolerance || math.IsNaN(p) {
				return fmt.Errorf("%w: row %d probability %v at %d", ErrInvalidTable, i, p, j)
			}
			prev = p
		}
		if len(probs) > 0 && math.Abs(probs[len(probs)-1]-1) > cdfTolerance {
			return fmt.Errorf("%w: row %d ends at %v", ErrInvalidTable, i, probs[len(probs)-1])
		}
	}
	return nil
}

// Probability returns the one-step transition probability from i to j.
func (t *Table) Probability(i, j int32) float64 {
	prev := 0.0
	p := 0.0
	for k, nb := range t.Neighbors[i] {
		if nb == j {
			p += t.CumProbs[i][k] - prev
		}
		prev = t.CumProbs[i][k]
	}
	return p
}
