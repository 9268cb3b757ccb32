// Package logging provides the small Debug/Info/Error logger threaded
// explicitly through hub, router, and gossip instances, following the
// split the teacher's atomic/logging.SessionLogger makes between
// debug-only and always-on output. Unlike the teacher, no package-level
// global logger exists here: each component holds its own *Logger,
// consistent with the "no global mutable singletons" design note.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Logger wraps the standard log package with a Debug gate, writing
// timestamped lines to the configured output.
type Logger struct {
	mu     sync.Mutex
	out    *log.Logger
	debug  bool
	prefix string
}

// New creates a Logger writing to os.Stderr. prefix identifies the
// owning component (e.g. "hub", "router", "gossip") in every line.
func New(prefix string, debug bool) *Logger {
	return &Logger{
		out:    log.New(os.Stderr, "", 0),
		debug:  debug,
		prefix: prefix,
	}
}

func (l *Logger) write(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := time.Now().Format("15:04:05.000")
	l.out.Printf("[%s] %s %s: %s", timestamp, level, l.prefix, fmt.Sprintf(format, args...))
}

// Debug writes a debug-level line, suppressed unless the Logger was
// constructed with debug=true.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write("DEBUG", format, args...)
}

// Info writes an always-on informational line.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("INFO", format, args...)
}

// Error writes an always-on error line.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERROR", format, args...)
}

// SetDebug toggles debug-level output at runtime.
func (l *Logger) SetDebug(debug bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = debug
}
