package walk

import (
	"fmt"
	"sort"
)

// NodeIndex is a bijection between graph node IDs and dense indices 0..N-1.
// It is built once per graph and shared by every run against it.
type NodeIndex struct {
	ids []int64
	pos map[int64]int
}

// NewNodeIndex assigns index i to ids[i]. IDs must be distinct.
func NewNodeIndex(ids []int64) (*NodeIndex, error) {
	idx := &NodeIndex{
		ids: make([]int64, len(ids)),
		pos: make(map[int64]int, len(ids)),
	}
	copy(idx.ids, ids)
	for i, id := range ids {
		if _, dup := idx.pos[id]; dup {
			return nil, fmt.Errorf("%w: duplicate node %d", ErrIndexMismatch, id)
		}
		idx.pos[id] = i
	}
	return idx, nil
}

// NodeIndexFromMap builds an index from an explicit node->index mapping.
// The indices must cover 0..len(m)-1 exactly once.
func NodeIndexFromMap(m map[int64]int) (*NodeIndex, error) {
	ids := make([]int64, len(m))
	filled := make([]bool, len(m))
	for id, i := range m {
		if i < 0 || i >= len(m) || filled[i] {
			return nil, fmt.Errorf("%w: index %d for node %d is out of range or reused", ErrIndexMismatch, i, id)
		}
		ids[i] = id
		filled[i] = true
	}
	return NewNodeIndex(ids)
}

// SortedIndex numbers the given IDs in ascending order.
func SortedIndex(ids []int64) *NodeIndex {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	// sorted IDs from a graph are unique
	idx, _ := NewNodeIndex(sorted)
	return idx
}

// Len returns N.
func (x *NodeIndex) Len() int {
	return len(x.ids)
}

// Index returns the dense index of id.
func (x *NodeIndex) Index(id int64) (int, bool) {
	i, ok := x.pos[id]
	return i, ok
}

// ID returns the node ID at index i.
func (x *NodeIndex) ID(i int) int64 {
	return x.ids[i]
}

// IDs returns the node IDs in index order.
func (x *NodeIndex) IDs() []int64 {
	return append([]int64(nil), x.ids...)
}

// All returns every index, 0..N-1, as walker sources.
func (x *NodeIndex) All() []int32 {
	all := make([]int32, len(x.ids))
	for i := range all {
		all[i] = int32(i)
	}
	return all
}
