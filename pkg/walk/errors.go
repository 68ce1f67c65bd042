package walk

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphTooSmall matches any *GraphTooSmallError.
	ErrGraphTooSmall     = errors.New("network is too small")
	ErrIndexMismatch     = errors.New("node index does not match graph")
	ErrNonPositiveWeight = errors.New("out-weights must be non-negative with a positive sum")
	ErrInvalidTable      = errors.New("invalid transition table")
)

// GraphTooSmallError reports a graph with fewer than two nodes.
type GraphTooSmallError struct {
	Nodes int
}

func (e *GraphTooSmallError) Error() string {
	return fmt.Sprintf("%v: %d node(s), need at least 2", ErrGraphTooSmall, e.Nodes)
}

// Is lets errors.Is(err, ErrGraphTooSmall) match.
func (e *GraphTooSmallError) Is(target error) bool {
	return target == ErrGraphTooSmall
}
