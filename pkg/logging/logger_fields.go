package logging

import (
	"strconv"
	"time"
)

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Uint64 is written as a string; seeds exceed the float precision of most
// JSON readers.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: strconv.FormatUint(value, 10)}
}

// Duration is written in seconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.Seconds()}
}

// Error is written as the error's message, or null.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Component(name string) Field { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
func Count(n int) Field { return Int("count", n) }

// March fields.

func Policy(name string) Field { return String("policy", name) }
func Step(t int) Field { return Int("step", t) }
func SimID(id string) Field { return String("sim_id", id) }
func Workers(n int) Field { return Int("workers", n) }
func Backlog(n int) Field { return Int("backlog", n) }
