// Package log is a minimal logging wrapper shared by the rtcore
// subsystems. It deliberately does not pull in a structured logging
// framework: callers that need one can wrap a Logger's io.Writer.
package log

import (
	"fmt"
	"io"
)

// Logger is a minimal wrapper around an io.Writer.
type Logger struct {
	io.Writer
	verbose bool
}

// New returns a new logger which writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// SetVerbose toggles whether Verbosef actually writes anything.
func (l *Logger) SetVerbose(v bool) {
	l.verbose = v
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, f, args...)
}

// Verbosef logs a formatted line only when verbose mode is enabled.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l, format+"\n", args...)
}
