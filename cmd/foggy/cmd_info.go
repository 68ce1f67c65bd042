package main

import (
	"math"
	"strconv"

	"github.com/dd0wney/cluso-foggy/pkg/graph"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <graph>",
		Short: "Describe a graph file",
		Long: `Load a graph the way an experiment would and print its size, connectivity
and degree range. Sinks are nodes without out-edges; walks stop there.`,
		Example: `  foggy info network.txt
  foggy info network.yaml --weight-key capacity`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			directed, _ := cmd.Flags().GetBool("directed")
			weightKey, _ := cmd.Flags().GetString("weight-key")

			g, err := graph.Load(args[0], format, directed)
			if err != nil {
				return err
			}
			info, err := describe(g, weightKey)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), []string{"property", "value"}, info.rows())
		},
	}
	cmd.Flags().String("format", "", "Graph format: edgelist or yaml (default from extension)")
	cmd.Flags().Bool("directed", false, "Read an edge list as directed")
	cmd.Flags().String("weight-key", "", "Edge attribute used as weight")
	return cmd
}

type graphInfo struct {
	name       string
	directed   bool
	nodes      int
	edges      int
	components int
	largest    int
	sinks      int
	minDegree  float64
	meanDegree float64
	maxDegree  float64
}

func describe(g *graph.Graph, weightKey string) (*graphInfo, error) {
	info := &graphInfo{
		name:      g.Name,
		directed:  g.Directed(),
		nodes:     g.Len(),
		edges:     g.EdgeCount(),
		minDegree: math.Inf(1),
		maxDegree: math.Inf(-1),
	}

	comps := g.Components()
	info.components = len(comps)
	for _, c := range comps {
		info.largest = max(info.largest, len(c))
	}

	table, _, err := walk.BuildTable(g, walk.TableOptions{WeightKey: weightKey})
	if err != nil {
		return nil, err
	}
	for i := range table.Len() {
		if table.IsSink(int32(i)) {
			info.sinks++
		}
	}

	sum := 0.0
	for _, id := range g.Nodes() {
		d := g.Degree(id, weightKey)
		sum += d
		info.minDegree = math.Min(info.minDegree, d)
		info.maxDegree = math.Max(info.maxDegree, d)
	}
	info.meanDegree = sum / float64(info.nodes)
	return info, nil
}

func (i *graphInfo) rows() [][]string {
	name := i.name
	if name == "" {
		name = "-"
	}
	return [][]string{
		{"name", name},
		{"directed", strconv.FormatBool(i.directed)},
		{"nodes", strconv.Itoa(i.nodes)},
		{"edges", strconv.Itoa(i.edges)},
		{"components", strconv.Itoa(i.components)},
		{"largest component", strconv.Itoa(i.largest)},
		{"sinks", strconv.Itoa(i.sinks)},
		{"min degree", formatFloat(i.minDegree)},
		{"mean degree", formatFloat(i.meanDegree)},
		{"max degree", formatFloat(i.maxDegree)},
	}
}
