package graph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported file formats
const (
	FormatEdgeList = "edgelist"
	FormatYAML     = "yaml"
)

var ErrUnknownFormat = errors.New("unknown graph format")

// LoadEdgeList reads whitespace separated "from to [weight]" lines. Blank
// lines and lines starting with '#' or '%' are skipped. A line with a single
// ID declares an isolated node.
func LoadEdgeList(r io.Reader, directed bool) (*Graph, error) {
	g := New(directed)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '%' {
			continue
		}

		fields := strings.Fields(line)
		from, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse node id %q: %w", lineNo, fields[0], err)
		}
		if len(fields) == 1 {
			g.ensureNode(from)
			continue
		}

		to, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse node id %q: %w", lineNo, fields[1], err)
		}
		weight := 1.0
		if len(fields) > 2 {
			weight, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse weight %q: %w", lineNo, fields[2], err)
			}
		}
		if _, err := g.AddEdge(from, to, weight, nil); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read edge list: %w", err)
	}
	return g, nil
}

// yamlGraph is the on-disk YAML layout.
type yamlGraph struct {
	Name     string     `yaml:"name"`
	Directed bool       `yaml:"directed"`
	Nodes    []int64    `yaml:"nodes"`
	Edges    []yamlEdge `yaml:"edges"`
}

type yamlEdge struct {
	From       int64              `yaml:"from"`
	To         int64              `yaml:"to"`
	Weight     *float64           `yaml:"weight"`
	Properties map[string]float64 `yaml:"properties"`
}

// LoadYAML reads a graph document:
//
//	name: line
//	directed: false
//	nodes: [0, 1, 2]
//	edges:
//	  - {from: 0, to: 1, weight: 2.5}
func LoadYAML(r io.Reader) (*Graph, error) {
	var doc yamlGraph
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode graph yaml: %w", err)
	}

	g := New(doc.Directed)
	g.Name = doc.Name
	for _, id := range doc.Nodes {
		if _, err := g.AddNode(id); err != nil {
			return nil, err
		}
	}
	for i, e := range doc.Edges {
		weight := 1.0
		if e.Weight != nil {
			weight = *e.Weight
		}
		if _, err := g.AddEdge(e.From, e.To, weight, e.Properties); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return g, nil
}

// Load opens path and decodes it. An empty format is inferred from the file
// extension. directed only applies to edge lists; YAML documents carry their
// own flag. The graph is named after the file when the source has no name.
func Load(path, format string, directed bool) (*Graph, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = FormatYAML
		default:
			format = FormatEdgeList
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()

	var g *Graph
	switch format {
	case FormatEdgeList:
		g, err = LoadEdgeList(f, directed)
	case FormatYAML:
		g, err = LoadYAML(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}
