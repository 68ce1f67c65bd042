// Package march runs populations of random walkers over a transition table
// and records per-node activity.
//
// Four entry points share one step loop. Run records the full activity
// matrix. RunIterative keeps only running per-node means and deviations.
// RunDeletory drops walkers that arrive at a node already at capacity.
// RunBuffered parks them in a backlog and replays them in later steps.
//
// Walk sampling is delegated to a parallel.Dispatcher. The controller
// itself is sequential: it waits for every path of a step, then applies
// them in dispatch order, because capacity occupancy depends on that order.
package march

import (
	"math/rand/v2"

	"github.com/dd0wney/cluso-foggy/pkg/arrival"
	"github.com/dd0wney/cluso-foggy/pkg/assess"
	"github.com/dd0wney/cluso-foggy/pkg/capacity"
	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
)

// Policy names an admission regime.
type Policy string

const (
	Unconstrained Policy = "unconstrained"
	Iterative     Policy = "iterative"
	Deletory      Policy = "deletory"
	Buffered      Policy = "buffered"
)

// Config is shared by every march.
type Config struct {
	Table *walk.Table
	// Sources are the node indices new walkers start from, drawn uniformly
	// with replacement.
	Sources  []int32
	Arrivals arrival.Generator
	// TimePoints is the number of time steps T.
	TimePoints int
	// MaxSteps bounds each walk.
	MaxSteps int
	// Assessor values each visit. Nil values every visit at 1.
	Assessor assess.Assessor
	// Transient is the number of leading path positions of a new walker
	// that are neither recorded nor checked against capacity.
	Transient int
	// Seed makes the march reproducible under a deterministic dispatch
	// mode. Nil draws a random seed, reported in the result.
	Seed *uint64
	// Launcher starts the walk dispatcher. Nil runs a single direct worker.
	Launcher parallel.Launcher
	// Progress, if set, is called after every step.
	Progress func(Progress)
	Metrics  *metrics.Registry
	Logger   logging.Logger
}

// Progress describes the march after a completed step.
type Progress struct {
	Policy     Policy
	Step       int
	TimePoints int
	// Fraction of steps completed, in (0, 1].
	Fraction float64
	Walkers  int
	Rejected int
	Backlog  int
	Dropped  int
}

// Seed returns a pointer to s for Config.Seed.
func Seed(s uint64) *uint64 {
	return &s
}

func (c *Config) validate(caps capacity.Vector, constrained bool) error {
	if c.Table == nil {
		return configError("nil transition table")
	}
	n := c.Table.Len()
	if len(c.Sources) == 0 {
		return configError("no source nodes")
	}
	for _, s := range c.Sources {
		if s < 0 || int(s) >= n {
			return configError("source %d outside 0..%d", s, n-1)
		}
	}
	if c.Arrivals == nil {
		return configError("nil arrival generator")
	}
	if c.TimePoints <= 0 {
		return configError("time points must be positive, got %d", c.TimePoints)
	}
	if c.MaxSteps < 0 {
		return configError("max steps must be non-negative, got %d", c.MaxSteps)
	}
	if c.Transient < 0 {
		return configError("transient must be non-negative, got %d", c.Transient)
	}
	if constrained {
		if err := capacity.Validate(caps, n); err != nil {
			return configError("%v", err)
		}
	}
	return nil
}

func (c *Config) assessor() assess.Assessor {
	if c.Assessor == nil {
		return assess.Unit
	}
	return c.Assessor
}

func (c *Config) logger() logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

func (c *Config) seed() uint64 {
	if c.Seed != nil {
		return *c.Seed
	}
	return rand.Uint64()
}
