// Package assess maps a visited node to the activity value of the visit.
package assess

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAlpha reports alpha = 1, for which mu is undefined.
var ErrInvalidAlpha = errors.New("alpha must not equal 1")

// DefaultNu is the nu used when none is configured.
const DefaultNu = 1.0

// Assessor returns the value of one visit to node index i.
type Assessor interface {
	Value(i int32) float64
}

// Constant gives every visit the same value.
type Constant struct {
	V float64
}

// Unit values every visit at 1.
var Unit = Constant{V: 1}

// Value implements Assessor.
func (c Constant) Value(int32) float64 { return c.V }

// ComputeMu returns the degree exponent that yields fluctuation scaling
// exponent alpha: mu = (nu - 2*alpha*nu) / (2*(alpha - 1)).
func ComputeMu(alpha, nu float64) (float64, error) {
	if alpha == 1 {
		return 0, fmt.Errorf("%w: nu=%v", ErrInvalidAlpha, nu)
	}
	if nu == 0 {
		nu = DefaultNu
	}
	return (nu - 2*alpha*nu) / (2 * (alpha - 1)), nil
}

// Alpha is the inverse of ComputeMu.
func Alpha(mu, nu float64) float64 {
	if nu == 0 {
		nu = DefaultNu
	}
	r := mu / nu
	return 0.5 * (1 + r/(r+1))
}

func checkFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("value %v is not finite", v)
	}
	return nil
}
