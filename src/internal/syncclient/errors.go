// FILE: synctrack/src/internal/syncclient/errors.go
package syncclient

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when the backend refuses or cannot complete a login
	ErrAuth = errors.New("authentication failed")

	// ErrOpen is returned when a store cannot be opened for a user
	ErrOpen = errors.New("failed to open store")

	// ErrWrite is returned when a local write transaction fails
	ErrWrite = errors.New("store write failed")

	// ErrSync is returned when local changes cannot be exchanged with the backend
	ErrSync = errors.New("sync failed")

	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store is closed")
)

// StatusError is a non-2xx backend response
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: server returned status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: server returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsStatus reports whether err carries a backend response with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
