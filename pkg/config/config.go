// Package config loads experiment descriptions.
//
// An experiment is a YAML document naming one or more graphs, a walk type
// and lists of scaling factors. Runs expands the factors into the individual
// marches to execute.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/dd0wney/cluso-foggy/pkg/march"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"gopkg.in/yaml.v3"
)

// Experiment is the top-level YAML document.
type Experiment struct {
	Graphs []GraphSource `yaml:"graphs" validate:"required,min=1,dive"`

	// WalkType is unconstrained, iterative, deletory or buffered. The
	// legacy name "parallel" is accepted for unconstrained.
	WalkType   string `yaml:"walk_type" validate:"required,oneof=unconstrained iterative deletory buffered parallel"`
	WalkSetup  string `yaml:"walk_setup" validate:"omitempty,oneof=uniform"`
	WalkerDist string `yaml:"walker_dist" validate:"omitempty,oneof=uniform"`

	// New walkers per step are len(graph) x walker factor, varied by
	// walkers x variation factor. Walk budgets are len(graph) x steps factor.
	WalkerFactors    []float64 `yaml:"walker_factors" validate:"required,min=1,dive,gt=0"`
	VariationFactors []float64 `yaml:"variation_factors" validate:"required,min=1,dive,gte=0"`
	StepsFactors     []float64 `yaml:"steps_factors" validate:"required,min=1,dive,gt=0"`

	Capacity        string    `yaml:"capacity" validate:"omitempty,oneof=uniform degree"`
	CapacityFactors []float64 `yaml:"capacity_factors" validate:"omitempty,dive,gt=0"`
	Backlog         string    `yaml:"backlog" validate:"omitempty,oneof=truncate unbounded"`

	TimePoints int `yaml:"time_points" validate:"gt=0"`
	Transient  int `yaml:"transient" validate:"gte=0"`

	VisitValue string  `yaml:"visit_value" validate:"omitempty,oneof=constant degree"`
	Alpha      float64 `yaml:"alpha"`
	Nu         float64 `yaml:"nu" validate:"gte=0"`

	Repetition int     `yaml:"repetition" validate:"gte=1"`
	Seed       *uint64 `yaml:"seed,omitempty"`

	Workers       int      `yaml:"workers" validate:"gte=1"`
	Dispatch      string   `yaml:"dispatch" validate:"omitempty,oneof=direct balanced remote"`
	RemoteWorkers []string `yaml:"remote_workers" validate:"required_if=Dispatch remote,dive,required"`

	Output  Output  `yaml:"output"`
	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`
}

// GraphSource names a graph file.
type GraphSource struct {
	Path      string `yaml:"path" validate:"required"`
	Format    string `yaml:"format" validate:"omitempty,oneof=edgelist yaml"`
	Type      string `yaml:"type"`
	Directed  bool   `yaml:"directed"`
	WeightKey string `yaml:"weight_key"`
}

// Output configures where results go.
type Output struct {
	Dir      string `yaml:"dir" validate:"required"`
	Postgres string `yaml:"postgres_dsn"`
	S3       S3     `yaml:"s3"`
}

// S3 configures result upload. An empty bucket disables it.
type S3 struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Logging configures the logger.
type Logging struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// Metrics configures the Prometheus endpoint. An empty address disables it.
type Metrics struct {
	Listen string `yaml:"listen"`
}

// Default returns an experiment with every optional field set.
func Default() *Experiment {
	return &Experiment{
		WalkType:         string(march.Unconstrained),
		WalkSetup:        "uniform",
		WalkerDist:       "uniform",
		WalkerFactors:    []float64{1},
		VariationFactors: []float64{0},
		StepsFactors:     []float64{1},
		CapacityFactors:  []float64{1},
		Backlog:          "truncate",
		TimePoints:       100,
		VisitValue:       "constant",
		Nu:               1,
		Repetition:       1,
		Workers:          1,
		Dispatch:         "direct",
		Output:           Output{Dir: "results"},
		Logging:          Logging{Level: "info"},
	}
}

// Load reads, defaults, overrides from the environment and validates an
// experiment file.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment: %w", err)
	}
	exp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

// Parse decodes a YAML experiment on top of Default, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Experiment, error) {
	exp := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(exp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := exp.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// Policy returns the march policy of WalkType.
func (e *Experiment) Policy() march.Policy {
	switch strings.ToLower(e.WalkType) {
	case "", "parallel":
		return march.Unconstrained
	default:
		return march.Policy(strings.ToLower(e.WalkType))
	}
}

// Constrained reports whether the walk type needs a capacity.
func (e *Experiment) Constrained() bool {
	p := e.Policy()
	return p == march.Deletory || p == march.Buffered
}

// Mode returns the dispatch mode.
func (e *Experiment) Mode() parallel.Mode {
	m, err := parallel.ParseMode(e.Dispatch)
	if err != nil {
		return parallel.Direct
	}
	return m
}

// BacklogPolicy returns the buffered backlog bound.
func (e *Experiment) BacklogPolicy() march.BacklogPolicy {
	m, err := march.ParseBacklogMode(e.Backlog)
	if err != nil {
		return march.BacklogPolicy{}
	}
	return march.BacklogPolicy{Mode: m}
}
