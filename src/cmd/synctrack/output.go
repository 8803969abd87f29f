// FILE: synctrack/src/cmd/synctrack/output.go
package main

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// OutputHandler writes synctrack's console output: run progress such as
// "Opened store" and "Got N <Class> objects" to stdout, and errors and
// locally printed sync diagnostics to stderr. Quiet mode drops both.
// Writes are serialized because diagnostics arrive from sync client goroutines.
type OutputHandler struct {
	quiet  bool
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

var output *OutputHandler

// InitOutputHandler installs the process-wide handler used by Print and Error
func InitOutputHandler(quiet bool) {
	output = newOutputHandler(quiet, os.Stdout, os.Stderr)
}

func newOutputHandler(quiet bool, stdout, stderr io.Writer) *OutputHandler {
	return &OutputHandler{quiet: quiet, stdout: stdout, stderr: stderr}
}

// Print writes a progress line
func (o *OutputHandler) Print(format string, args ...any) {
	o.write(o.stdout, format, args...)
}

// Error writes an error or diagnostic line
func (o *OutputHandler) Error(format string, args ...any) {
	o.write(o.stderr, format, args...)
}

func (o *OutputHandler) write(w io.Writer, format string, args ...any) {
	if o.quiet {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(w, format, args...)
}

func Print(format string, args ...any) {
	if output != nil {
		output.Print(format, args...)
	}
}

// Error falls back to stderr before the handler exists so flag errors still show
func Error(format string, args ...any) {
	if output != nil {
		output.Error(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
