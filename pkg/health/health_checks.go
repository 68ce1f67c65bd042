package health

import (
	"context"
	"os"
	"runtime"
)

// PingCheck reports a store unhealthy when ping fails.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		if err := ping(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy, Message: "connected"}
	}
}

// DirCheck reports whether results can be written under dir.
func DirCheck(dir string) CheckFunc {
	return func(context.Context) Check {
		check := Check{Details: map[string]any{"dir": dir}}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			return check
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		check.Status = StatusHealthy
		return check
	}
}

// SweepCheck reports sweep progress. Failed runs degrade the sweep.
func SweepCheck(progress func() (done, failed, total int)) CheckFunc {
	return func(context.Context) Check {
		done, failed, total := progress()
		check := Check{
			Status: StatusHealthy,
			Details: map[string]any{
				"done":   done,
				"failed": failed,
				"total":  total,
			},
		}
		if failed > 0 {
			check.Status = StatusDegraded
			check.Message = "runs failed"
		}
		return check
	}
}

// SessionCheck reports the live sessions of a remote worker.
func SessionCheck(sessions func() int) CheckFunc {
	return func(context.Context) Check {
		return Check{
			Status:  StatusHealthy,
			Details: map[string]any{"sessions": sessions()},
		}
	}
}

// MemoryCheck degrades once the heap exceeds limit bytes. Zero disables the
// limit.
func MemoryCheck(limit uint64) CheckFunc {
	return func(context.Context) Check {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		check := Check{
			Status: StatusHealthy,
			Details: map[string]any{
				"heap_alloc_bytes": ms.HeapAlloc,
				"sys_bytes":        ms.Sys,
			},
		}
		if limit > 0 && ms.HeapAlloc > limit {
			check.Status = StatusDegraded
			check.Message = "heap above limit"
		}
		return check
	}
}
