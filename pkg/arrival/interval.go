// Package arrival decides how many new walkers enter a march at each step.
package arrival

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrNegative reports a negative midpoint or variation.
var ErrNegative = errors.New("arrival midpoint and variation must be non-negative")

// Generator yields the number of walkers injected at one time step.
type Generator interface {
	Next(rng *rand.Rand) int
	MidPoint() int
}

// Kind is the variant an Interval settles on at construction.
type Kind int

const (
	Constant Kind = iota
	Uniform
)

func (k Kind) String() string {
	if k == Uniform {
		return "uniform"
	}
	return "constant"
}

// Interval draws arrivals uniformly from [mid-variation, mid+variation],
// clamped at zero. Zero variation always yields mid.
type Interval struct {
	kind      Kind
	mid       int
	variation int
}

// NewInterval fixes the variant once from variation.
func NewInterval(mid, variation int) (Interval, error) {
	if mid < 0 || variation < 0 {
		return Interval{}, fmt.Errorf("%w: mid=%d variation=%d", ErrNegative, mid, variation)
	}
	kind := Constant
	if variation > 0 {
		kind = Uniform
	}
	return Interval{kind: kind, mid: mid, variation: variation}, nil
}

// Kind returns the chosen variant.
func (iv Interval) Kind() Kind { return iv.kind }

// MidPoint returns the configured midpoint.
func (iv Interval) MidPoint() int { return iv.mid }

// Variation returns the half-width of the interval.
func (iv Interval) Variation() int { return iv.variation }

// Next returns the arrival count for one step.
func (iv Interval) Next(rng *rand.Rand) int {
	if iv.kind == Constant {
		return iv.mid
	}
	lo := iv.mid - iv.variation
	n := lo + rng.IntN(2*iv.variation+1)
	return max(n, 0)
}

func (iv Interval) String() string {
	if iv.kind == Constant {
		return fmt.Sprintf("constant(%d)", iv.mid)
	}
	return fmt.Sprintf("uniform(%d±%d)", iv.mid, iv.variation)
}
