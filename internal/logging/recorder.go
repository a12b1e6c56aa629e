package logging

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/arloliu/presplit/types"
)

// Entry is a single message captured by a Recorder.
type Entry struct {
	Level         string
	Msg           string
	KeysAndValues []any
}

// Recorder implements types.Logger by keeping every message in memory and,
// when constructed with a testing.T, echoing it to the test output.
type Recorder struct {
	t *testing.T

	mu      sync.Mutex
	entries []Entry
}

// Compile-time assertion that Recorder implements Logger.
var _ types.Logger = (*Recorder)(nil)

// NewTest creates a recorder that also writes to t.Logf.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NewTest(t)
//	    b := balancer.New(cat, sk, balancer.WithLogger(logger))
//	    ...
//	    require.Len(t, logger.Entries("WARN"), 1)
//	}
func NewTest(t *testing.T) *Recorder {
	return &Recorder{t: t}
}

// Entries returns the recorded messages of a level ("DEBUG", "INFO", "WARN", "ERROR", "FATAL").
// An empty level returns every message.
func (r *Recorder) Entries(level string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}

	return out
}

// Debug records a debug-level message.
func (r *Recorder) Debug(msg string, keysAndValues ...any) { r.record("DEBUG", msg, keysAndValues) }

// Info records an info-level message.
func (r *Recorder) Info(msg string, keysAndValues ...any) { r.record("INFO", msg, keysAndValues) }

// Warn records a warning-level message.
func (r *Recorder) Warn(msg string, keysAndValues ...any) { r.record("WARN", msg, keysAndValues) }

// Error records an error-level message.
func (r *Recorder) Error(msg string, keysAndValues ...any) { r.record("ERROR", msg, keysAndValues) }

// Fatal records the message and fails the test when bound to one.
func (r *Recorder) Fatal(msg string, keysAndValues ...any) {
	r.record("FATAL", msg, keysAndValues)
	if r.t != nil {
		r.t.Fatalf("FATAL: %s %s", msg, formatKeyValues(keysAndValues))
	}
}

func (r *Recorder) record(level, msg string, keysAndValues []any) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, KeysAndValues: keysAndValues})
	r.mu.Unlock()

	if r.t != nil && level != "FATAL" {
		r.t.Logf("%s: %s %s", level, msg, formatKeyValues(keysAndValues))
	}
}

// formatKeyValues formats key-value pairs for logging.
func formatKeyValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, "%v=%v ", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, "%v=<missing> ", keysAndValues[i])
		}
	}

	return strings.TrimSpace(sb.String())
}
