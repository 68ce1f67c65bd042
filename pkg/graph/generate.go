package graph

import "math/rand/v2"

// Line returns the undirected path 0-1-...-(n-1) with unit weights.
func Line(n int) *Graph {
	g := New(false)
	for i := 0; i < n; i++ {
		g.ensureNode(int64(i))
	}
	for i := 1; i < n; i++ {
		// unit weights are always valid
		_, _ = g.AddEdge(int64(i-1), int64(i), 1, nil)
	}
	return g
}

// Cycle returns the ring 0-1-...-(n-1)-0 with unit weights.
func Cycle(n int, directed bool) *Graph {
	g := New(directed)
	for i := 0; i < n; i++ {
		g.ensureNode(int64(i))
	}
	for i := 0; i < n; i++ {
		_, _ = g.AddEdge(int64(i), int64((i+1)%n), 1, nil)
	}
	return g
}

// Random returns a G(n, p) graph with weights drawn uniformly from (0, 1].
func Random(n int, p float64, directed bool, rng *rand.Rand) *Graph {
	g := New(directed)
	for i := 0; i < n; i++ {
		g.ensureNode(int64(i))
	}
	for i := 0; i < n; i++ {
		j0 := i + 1
		if directed {
			j0 = 0
		}
		for j := j0; j < n; j++ {
			if i == j || rng.Float64() >= p {
				continue
			}
			_, _ = g.AddEdge(int64(i), int64(j), 1-rng.Float64(), nil)
		}
	}
	return g
}
