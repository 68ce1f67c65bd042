// Package graph holds the in-memory networks random walkers move on.
//
// A Graph is built once (by hand or with one of the loaders) and then treated
// as immutable: marches only read node and edge data through it.
package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrDuplicateNode = errors.New("duplicate node")
	ErrInvalidWeight = errors.New("invalid edge weight")
)

// Node is a vertex with a stable identity.
type Node struct {
	ID     int64
	Labels []string
}

// Edge is a weighted connection. For undirected graphs the same edge is
// reachable from both endpoints.
type Edge struct {
	From       int64
	To         int64
	Weight     float64
	Properties map[string]float64
}

// Other returns the endpoint opposite to id.
func (e *Edge) Other(id int64) int64 {
	if e.From == id {
		return e.To
	}
	return e.From
}

// Value returns the named edge attribute. The empty key and the key
// "weight" resolve to Weight; unknown keys report ok=false.
func (e *Edge) Value(key string) (float64, bool) {
	if key == "" || key == "weight" {
		return e.Weight, true
	}
	v, ok := e.Properties[key]
	return v, ok
}

// Graph is an adjacency-list network.
type Graph struct {
	Name     string
	directed bool
	nodes    map[int64]*Node
	order    []int64
	edges    []*Edge
	out      map[int64][]*Edge
	in       map[int64][]*Edge
}

// New creates an empty graph.
func New(directed bool) *Graph {
	return &Graph{
		directed: directed,
		nodes:    make(map[int64]*Node),
		out:      make(map[int64][]*Edge),
		in:       make(map[int64][]*Edge),
	}
}

// Directed reports whether edges are one-way.
func (g *Graph) Directed() bool {
	return g.directed
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges as added (an undirected edge counts once).
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds a node. Adding an existing ID fails with ErrDuplicateNode.
func (g *Graph) AddNode(id int64, labels ...string) (*Node, error) {
	if _, ok := g.nodes[id]; ok {
		return nil, fmt.Errorf("add node %d: %w", id, ErrDuplicateNode)
	}
	n := &Node{ID: id, Labels: append([]string(nil), labels...)}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return n, nil
}

// ensureNode adds id if missing.
func (g *Graph) ensureNode(id int64) {
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &Node{ID: id}
		g.order = append(g.order, id)
	}
}

// AddEdge connects from and to, creating missing endpoints. Weights must be
// finite and non-negative.
func (g *Graph) AddEdge(from, to int64, weight float64, props map[string]float64) (*Edge, error) {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, fmt.Errorf("add edge %d->%d: %w: %v", from, to, ErrInvalidWeight, weight)
	}
	g.ensureNode(from)
	g.ensureNode(to)

	e := &Edge{From: from, To: to, Weight: weight}
	if len(props) > 0 {
		e.Properties = make(map[string]float64, len(props))
		for k, v := range props {
			e.Properties[k] = v
		}
	}
	g.edges = append(g.edges, e)
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	if !g.directed && from != to {
		g.out[to] = append(g.out[to], e)
		g.in[from] = append(g.in[from], e)
	}
	return e, nil
}

// Node looks up a node by ID.
func (g *Graph) Node(id int64) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	return n, nil
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all node IDs in ascending order.
func (g *Graph) Nodes() []int64 {
	ids := make([]int64, len(g.order))
	copy(ids, g.order)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Out returns the edges leaving id in insertion order. For undirected graphs
// this is every incident edge.
func (g *Graph) Out(id int64) []*Edge {
	return g.out[id]
}

// In returns the edges entering id. For undirected graphs this equals Out.
func (g *Graph) In(id int64) []*Edge {
	return g.in[id]
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []*Edge {
	return g.edges
}

// Degree returns the (optionally weighted) degree of id. Directed graphs sum
// in- and out-degree; a self loop in an undirected graph counts twice.
func (g *Graph) Degree(id int64, weightKey string) float64 {
	if g.directed {
		return sumWeights(g.out[id], weightKey) + sumWeights(g.in[id], weightKey)
	}
	d := sumWeights(g.out[id], weightKey)
	for _, e := range g.out[id] {
		if e.From == e.To {
			d += edgeWeight(e, weightKey)
		}
	}
	return d
}

// OutDegree returns the (optionally weighted) out-degree of id.
func (g *Graph) OutDegree(id int64, weightKey string) float64 {
	return sumWeights(g.out[id], weightKey)
}

// InDegree returns the (optionally weighted) in-degree of id.
func (g *Graph) InDegree(id int64, weightKey string) float64 {
	return sumWeights(g.in[id], weightKey)
}

func sumWeights(edges []*Edge, weightKey string) float64 {
	total := 0.0
	for _, e := range edges {
		total += edgeWeight(e, weightKey)
	}
	return total
}

// edgeWeight returns 1 per edge without a key, and 1 for edges lacking the
// requested attribute.
func edgeWeight(e *Edge, weightKey string) float64 {
	if weightKey == "" {
		return 1.0
	}
	if v, ok := e.Value(weightKey); ok {
		return v
	}
	return 1.0
}

// EdgeWeight exposes the weight resolution rule used by degrees and
// transition tables.
func EdgeWeight(e *Edge, weightKey string) float64 {
	return edgeWeight(e, weightKey)
}

// Components returns the weakly connected components, each sorted, ordered
// by their smallest node ID.
func (g *Graph) Components() [][]int64 {
	seen := make(map[int64]bool, len(g.nodes))
	var comps [][]int64

	for _, start := range g.Nodes() {
		if seen[start] {
			continue
		}
		comp := []int64{}
		queue := []int64{start}
		seen[start] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			comp = append(comp, id)
			for _, e := range g.out[id] {
				if n := e.Other(id); !seen[n] {
					seen[n] = true
					queue = append(queue, n)
				}
			}
			for _, e := range g.in[id] {
				if n := e.Other(id); !seen[n] {
					seen[n] = true
					queue = append(queue, n)
				}
			}
		}
		sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
		comps = append(comps, comp)
	}
	return comps
}
