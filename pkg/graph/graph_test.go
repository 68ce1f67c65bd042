package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(false)
	_, err := g.AddEdge(0, 1, 1, nil)
	require.NoError(t, err)
	_, err = g.AddEdge(1, 2, 3, map[string]float64{"flow": 0.5})
	require.NoError(t, err)
	return g
}

func TestUndirectedAdjacency(t *testing.T) {
	g := lineGraph(t)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []int64{0, 1, 2}, g.Nodes())
	require.Len(t, g.Out(1), 2)
	assert.Equal(t, int64(0), g.Out(1)[0].Other(1))
	assert.Equal(t, int64(2), g.Out(1)[1].Other(1))
	assert.Len(t, g.Out(0), 1)
}

func TestDirectedAdjacency(t *testing.T) {
	g := New(true)
	_, err := g.AddEdge(1, 2, 1, nil)
	require.NoError(t, err)

	assert.Len(t, g.Out(1), 1)
	assert.Empty(t, g.Out(2))
	assert.Len(t, g.In(2), 1)
	assert.Equal(t, 1.0, g.Degree(1, ""))
	assert.Equal(t, 1.0, g.Degree(2, ""))
	assert.Equal(t, 0.0, g.OutDegree(2, ""))
}

func TestDegree(t *testing.T) {
	g := lineGraph(t)

	assert.Equal(t, 2.0, g.Degree(1, ""))
	assert.Equal(t, 4.0, g.Degree(1, "weight"))
	// edges without the attribute count as 1
	assert.Equal(t, 1.5, g.Degree(1, "flow"))

	_, err := g.AddEdge(5, 5, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.Degree(5, ""), "self loop counts twice")
}

func TestAddEdgeRejectsBadWeights(t *testing.T) {
	g := New(false)
	for _, w := range []float64{-1, nan(), inf()} {
		_, err := g.AddEdge(0, 1, w, nil)
		assert.ErrorIs(t, err, ErrInvalidWeight)
	}
}

func TestAddNodeDuplicate(t *testing.T) {
	g := New(false)
	_, err := g.AddNode(7, "hub")
	require.NoError(t, err)
	_, err = g.AddNode(7)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	n, err := g.Node(7)
	require.NoError(t, err)
	assert.Equal(t, []string{"hub"}, n.Labels)

	_, err = g.Node(8)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestComponents(t *testing.T) {
	g := lineGraph(t)
	_, err := g.AddEdge(10, 11, 1, nil)
	require.NoError(t, err)
	_, err = g.AddNode(20)
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{0, 1, 2}, {10, 11}, {20}}, g.Components())
}

func TestLoadEdgeList(t *testing.T) {
	src := `# comment
0 1
1 2 2.5
% another comment

7
`
	g, err := LoadEdgeList(strings.NewReader(src), true)
	require.NoError(t, err)

	assert.True(t, g.Directed())
	assert.Equal(t, []int64{0, 1, 2, 7}, g.Nodes())
	assert.Equal(t, 2.5, g.Out(1)[0].Weight)

	_, err = LoadEdgeList(strings.NewReader("a b\n"), false)
	assert.Error(t, err)
	_, err = LoadEdgeList(strings.NewReader("0 1 heavy\n"), false)
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	src := `
name: triangle
directed: true
nodes: [0, 1, 2, 3]
edges:
  - {from: 0, to: 1}
  - {from: 1, to: 2, weight: 4}
  - {from: 2, to: 0, properties: {capacity: 3}}
`
	g, err := LoadYAML(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "triangle", g.Name)
	assert.True(t, g.Directed())
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 1.0, g.Out(0)[0].Weight)
	assert.Equal(t, 4.0, g.Out(1)[0].Weight)
	v, ok := g.Out(2)[0].Value("capacity")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, err = LoadYAML(strings.NewReader("edges: [{from: 0, to: 1, colour: red}]"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestLoadInfersFormat(t *testing.T) {
	dir := t.TempDir()
	edgePath := filepath.Join(dir, "ring.txt")
	require.NoError(t, os.WriteFile(edgePath, []byte("0 1\n1 2\n2 0\n"), 0o644))
	yamlPath := filepath.Join(dir, "pair.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("edges: [{from: 0, to: 1}]\n"), 0o644))

	ring, err := Load(edgePath, "", false)
	require.NoError(t, err)
	assert.Equal(t, "ring", ring.Name)
	assert.Equal(t, 3, ring.EdgeCount())

	pair, err := Load(yamlPath, "", false)
	require.NoError(t, err)
	assert.Equal(t, "pair", pair.Name)

	_, err = Load(edgePath, "gml", false)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.txt"), "", false)
	assert.Error(t, err)
}
