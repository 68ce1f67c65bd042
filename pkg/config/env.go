package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
)

// Environment variables that override the experiment file.
const (
	EnvLogLevel  = logging.EnvLevel
	EnvWorkers   = "FOGGY_WORKERS"
	EnvOutputDir = "FOGGY_OUTPUT_DIR"
)

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (e *Experiment) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		e.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, EnvWorkers, v)
		}
		e.Workers = n
	}
	if v, ok := lookup(EnvOutputDir); ok && v != "" {
		e.Output.Dir = v
	}
	return nil
}
