// Package logging writes one flat JSON object per line:
//
//	{"ts":"2024-05-01T10:00:00.123Z","level":"info","msg":"march finished","policy":"buffered","latency":1.5}
//
// Context fields from With come first, then call fields, in order. A call
// field replaces a context field of the same key.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EnvLevel names the environment variable read by DefaultLogger.
const EnvLevel = "FOGGY_LOG_LEVEL"

// Reserved keys; fields using them are written with a "field_" prefix.
const (
	keyTime    = "ts"
	keyLevel   = "level"
	keyMessage = "msg"
)

// JSONLogger implements Logger. Children share the parent's writer lock
// and level.
type JSONLogger struct {
	out    *output
	fields []Field
}

type output struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
	now   func() time.Time
}

// NewJSONLogger creates a logger writing lines at or above level to w.
func NewJSONLogger(w io.Writer, level Level) *JSONLogger {
	return &JSONLogger{out: &output{w: w, level: level, now: time.Now}}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewJSONLogger(io.Discard, ErrorLevel+1)
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child logger carrying fields.
func (l *JSONLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &JSONLogger{out: l.out, fields: merged}
}

// Enabled reports whether level passes the logger's threshold.
func (l *JSONLogger) Enabled(level Level) bool {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return level >= l.out.level
}

// SetLevel changes the threshold of l and every logger sharing its output.
func (l *JSONLogger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// GetLevel returns the current threshold.
func (l *JSONLogger) GetLevel() Level {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return l.out.level
}

func (l *JSONLogger) log(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKV(&buf, keyTime, l.out.now().UTC().Format(time.RFC3339Nano))
	buf.WriteByte(',')
	writeKV(&buf, keyLevel, level.String())
	buf.WriteByte(',')
	writeKV(&buf, keyMessage, msg)
	for _, f := range merge(l.fields, fields) {
		buf.WriteByte(',')
		writeKV(&buf, fieldKey(f.Key), f.Value)
	}
	buf.WriteString("}\n")

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w.Write(buf.Bytes())
}

// merge appends call fields to context fields; a repeated key keeps its
// first position and its last value.
func merge(ctx, call []Field) []Field {
	if len(call) == 0 {
		return ctx
	}
	all := make([]Field, 0, len(ctx)+len(call))
	pos := make(map[string]int, len(ctx)+len(call))
	for _, group := range [2][]Field{ctx, call} {
		for _, f := range group {
			if i, ok := pos[f.Key]; ok {
				all[i].Value = f.Value
				continue
			}
			pos[f.Key] = len(all)
			all = append(all, f)
		}
	}
	return all
}

func fieldKey(k string) string {
	switch k {
	case keyTime, keyLevel, keyMessage:
		return "field_" + k
	}
	return k
}

// writeKV writes "key":value. Values JSON cannot encode, such as NaN
// activity, are written as strings.
func writeKV(buf *bytes.Buffer, key string, value any) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	v, err := json.Marshal(value)
	if err != nil {
		v, _ = json.Marshal(fmt.Sprint(value))
	}
	buf.Write(v)
}

var (
	defaultLogger Logger
	defaultMu     sync.Mutex
)

// DefaultLogger returns the process-wide logger, created on first use on
// stderr at the level named by FOGGY_LOG_LEVEL. Stdout is left to command
// output.
func DefaultLogger() Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger == nil {
		defaultLogger = NewJSONLogger(os.Stderr, ParseLevel(os.Getenv(EnvLevel)))
	}
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger. Nil restores the
// lazily created one.
func SetDefaultLogger(logger Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return DefaultLogger()
	}
	return l
}

// Timer logs an operation with its latency when it ends.
type Timer struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}

// StartTimer begins timing an operation.
func StartTimer(logger Logger, msg string, fields ...Field) *Timer {
	return &Timer{logger: logger, msg: msg, start: time.Now(), fields: fields}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// End logs msg at info level.
func (t *Timer) End(fields ...Field) {
	t.logger.Info(t.msg, t.with(fields, Latency(t.Elapsed()))...)
}

// EndError logs msg at error level.
func (t *Timer) EndError(err error) {
	t.logger.Error(t.msg, t.with(nil, Latency(t.Elapsed()), Error(err))...)
}

func (t *Timer) with(fields []Field, extra ...Field) []Field {
	all := make([]Field, 0, len(t.fields)+len(fields)+len(extra))
	all = append(all, t.fields...)
	all = append(all, fields...)
	return append(all, extra...)
}
