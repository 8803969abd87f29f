// FILE: synctrack/src/internal/core/severity.go
package core

import (
	"fmt"
	"strings"
)

// Severity is the diagnostic level scale emitted by the sync client.
// Higher values are more severe; SeverityOff disables output.
type Severity int

const (
	SeverityAll Severity = iota
	SeverityTrace
	SeverityDebug
	SeverityDetail
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
	SeverityOff
)

var severityNames = [...]string{"all", "trace", "debug", "detail", "info", "warn", "error", "fatal", "off"}

func (s Severity) String() string {
	if s < SeverityAll || s > SeverityOff {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a level name into a Severity
func ParseSeverity(name string) (Severity, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		return SeverityWarn, nil
	}
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SeverityOff, fmt.Errorf("unknown severity: %q", name)
}

// Enabled reports whether an event at s passes the threshold
func (s Severity) Enabled(threshold Severity) bool {
	return threshold != SeverityOff && s != SeverityOff && s >= threshold
}
