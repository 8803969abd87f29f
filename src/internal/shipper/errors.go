// FILE: synctrack/src/internal/shipper/errors.go
package shipper

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthUnavailable means no valid credential could be established for the logging app
	ErrAuthUnavailable = errors.New("log store authentication unavailable")

	// ErrSessionUnavailable means the user is authenticated but no log store could be opened
	ErrSessionUnavailable = errors.New("log store session unavailable")

	// ErrSessionActive is returned by StartSession while a session is running
	ErrSessionActive = errors.New("log session already active")

	// ErrSessionClosed is returned when events arrive outside an active session
	ErrSessionClosed = errors.New("log session closed")
)

// WriteError is a failed flush. The events it covers are still pending.
type WriteError struct {
	Events int
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %d log events: %v", e.Events, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SyncError is a failure to upload local writes while stopping a session
type SyncError struct {
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to upload pending log writes: %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
