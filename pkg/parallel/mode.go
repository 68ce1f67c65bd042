package parallel

import (
	"fmt"
	"strings"
)

// Mode selects how walk jobs are spread over workers.
type Mode int

const (
	// Direct splits jobs into fixed per-worker chunks and returns paths in
	// job order. Reproducible for a fixed seed and worker count.
	Direct Mode = iota
	// Balanced hands small chunks to whichever worker is free and returns
	// paths in completion order. Not reproducible.
	Balanced
	// Remote sends fixed per-worker chunks to remote processes.
	// Reproducible like Direct.
	Remote
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Balanced:
		return "balanced"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Deterministic reports whether the mode preserves job-to-worker affinity.
func (m Mode) Deterministic() bool {
	return m != Balanced
}

// ParseMode reads a mode name. The empty string means Direct.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "sync":
		return Direct, nil
	case "balanced", "async":
		return Balanced, nil
	case "remote":
		return Remote, nil
	default:
		return Direct, fmt.Errorf("unknown dispatch mode %q", s)
	}
}
