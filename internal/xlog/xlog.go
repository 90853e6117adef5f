// Package xlog is the process-wide, append-only log sink referenced by
// the concurrency model: every link writes trace lines here, never to a
// per-link buffer, and the sink itself needs no locking beyond what
// log.Logger already provides. Sink wiring (files, syslog, a CLI's
// verbosity flag) is an external collaborator; this package only emits.
package xlog

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var enabled atomic.Bool

var std = log.New(io.Discard, "cahute: ", log.Lmicroseconds)

// Enable redirects trace output to stderr. Tests and CLIs call this; the
// library itself is silent by default.
func Enable() {
	std.SetOutput(os.Stderr)
	enabled.Store(true)
}

// Disable silences trace output again.
func Disable() {
	std.SetOutput(io.Discard)
	enabled.Store(false)
}

// Tracef logs one line when tracing is enabled. It never allocates the
// formatted string when disabled.
func Tracef(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	std.Printf(format, args...)
}
