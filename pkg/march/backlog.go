package march

import (
	"fmt"
	"math"
	"strings"
)

// Walker is a rejected walker waiting to resume: the node it was turned
// away from and the steps it had taken when that happened.
type Walker struct {
	Node    int32
	Elapsed int
}

// Backlog is a FIFO of waiting walkers, oldest first.
type Backlog struct {
	walkers []Walker
}

// Len returns the number of waiting walkers.
func (b *Backlog) Len() int { return len(b.walkers) }

// Push appends a walker.
func (b *Backlog) Push(w Walker) { b.walkers = append(b.walkers, w) }

// Walkers returns the waiting walkers, oldest first. The slice aliases the
// backlog.
func (b *Backlog) Walkers() []Walker { return b.walkers }

// Truncate keeps at most limit oldest walkers and returns how many were
// removed.
func (b *Backlog) Truncate(limit int) int {
	if limit < 0 {
		limit = 0
	}
	if len(b.walkers) <= limit {
		return 0
	}
	dropped := len(b.walkers) - limit
	b.walkers = b.walkers[:limit]
	return dropped
}

// take empties the backlog and returns its previous contents.
func (b *Backlog) take() []Walker {
	w := b.walkers
	b.walkers = nil
	return w
}

// BacklogMode selects how the backlog is bounded.
type BacklogMode int

const (
	// BacklogTruncate keeps at most floor(total capacity x remaining steps)
	// walkers when a step starts. Walkers beyond that cannot all be served
	// before the march ends.
	BacklogTruncate BacklogMode = iota
	// BacklogUnbounded never drops waiting walkers.
	BacklogUnbounded
)

func (m BacklogMode) String() string {
	if m == BacklogUnbounded {
		return "unbounded"
	}
	return "truncate"
}

// ParseBacklogMode reads "truncate" (or "") and "unbounded".
func ParseBacklogMode(s string) (BacklogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncate":
		return BacklogTruncate, nil
	case "unbounded":
		return BacklogUnbounded, nil
	default:
		return BacklogTruncate, fmt.Errorf("unknown backlog mode %q", s)
	}
}

// BacklogPolicy bounds the backlog of a buffered march.
type BacklogPolicy struct {
	Mode BacklogMode
}

// limit returns the largest backlog allowed at the start of a step with
// remaining steps left, or -1 for no limit.
func (p BacklogPolicy) limit(totalCapacity float64, remaining int) int {
	if p.Mode == BacklogUnbounded {
		return -1
	}
	bound := math.Floor(totalCapacity * float64(remaining))
	if bound >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(bound)
}

// apply bounds b and returns the number of walkers removed.
func (p BacklogPolicy) apply(b *Backlog, totalCapacity float64, remaining int) int {
	limit := p.limit(totalCapacity, remaining)
	if limit < 0 {
		return 0
	}
	return b.Truncate(limit)
}
