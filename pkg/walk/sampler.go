package walk

import (
	"math/rand/v2"
	"sort"
)

// NewRand returns the generator used throughout foggy for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sampler draws single random walks. A Sampler is not safe for concurrent
// use; parallel dispatchers give each worker its own.
type Sampler struct {
	table *Table
	rng   *rand.Rand
}

// NewSampler binds a read-only table to a private random stream.
func NewSampler(t *Table, rng *rand.Rand) *Sampler {
	return &Sampler{table: t, rng: rng}
}

// Table returns the table the sampler walks on.
func (s *Sampler) Table() *Table {
	return s.table
}

// Walk starts at node start and takes up to budget steps. The returned path
// includes start, so its length is between 1 and budget+1. Reaching a sink
// ends the walk early.
func (s *Sampler) Walk(start int32, budget int) []int32 {
	size := budget + 1
	if size > 64 {
		size = 64
	}
	return s.AppendWalk(make([]int32, 0, size), start, budget)
}

// AppendWalk is Walk appending to dst.
func (s *Sampler) AppendWalk(dst []int32, start int32, budget int) []int32 {
	node := start
	dst = append(dst, node)
	for step := 0; step < budget; step++ {
		nbrs := s.table.Neighbors[node]
		if len(nbrs) == 0 {
			break
		}
		probs := s.table.CumProbs[node]
		// leftmost entry whose cumulative probability reaches the draw
		k := sort.SearchFloat64s(probs, s.rng.Float64())
		if k == len(probs) {
			k = len(probs) - 1
		}
		node = nbrs[k]
		dst = append(dst, node)
	}
	return dst
}
