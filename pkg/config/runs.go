package config

import (
	"math"

	"github.com/dd0wney/cluso-foggy/pkg/march"
)

// Run is one march of an expanded experiment. Sizes scale with the number
// of nodes of the graph, which is only known once it is loaded.
type Run struct {
	// Index is the position of the run in the expansion.
	Index int
	Graph GraphSource

	Policy          march.Policy
	WalkerFactor    float64
	VariationFactor float64
	StepsFactor     float64
	// CapacityFactor is 0 for unconstrained walks.
	CapacityFactor float64
	// Repetition counts from 0.
	Repetition int
	// Seed is derived from the experiment seed, or nil for a random one.
	Seed *uint64
}

// Walkers returns the mid point of new walkers per step on n nodes.
func (r Run) Walkers(n int) int {
	return int(math.Round(float64(n) * r.WalkerFactor))
}

// Variation returns the spread around Walkers.
func (r Run) Variation(n int) int {
	return int(math.Round(float64(r.Walkers(n)) * r.VariationFactor))
}

// Steps returns the walk budget on n nodes.
func (r Run) Steps(n int) int {
	return int(math.Round(float64(n) * r.StepsFactor))
}

// Runs expands the experiment: graphs x walker factors x variation factors
// x steps factors x capacity factors x repetitions, in that nesting order.
// Capacity factors only apply to constrained walk types.
func (e *Experiment) Runs() []Run {
	capFactors := []float64{0}
	if e.Constrained() {
		capFactors = e.CapacityFactors
	}
	policy := e.Policy()

	var runs []Run
	for _, g := range e.Graphs {
		for _, kw := range e.WalkerFactors {
			for _, kv := range e.VariationFactors {
				for _, ks := range e.StepsFactors {
					for _, kc := range capFactors {
						for rep := 0; rep < e.Repetition; rep++ {
							run := Run{
								Index:           len(runs),
								Graph:           g,
								Policy:          policy,
								WalkerFactor:    kw,
								VariationFactor: kv,
								StepsFactor:     ks,
								CapacityFactor:  kc,
								Repetition:      rep,
							}
							if e.Seed != nil {
								run.Seed = march.Seed(*e.Seed + uint64(run.Index))
							}
							runs = append(runs, run)
						}
					}
				}
			}
		}
	}
	return runs
}
