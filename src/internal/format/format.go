// FILE: synctrack/src/internal/format/format.go
package format

import (
	"fmt"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter renders a diagnostic event for local output
type Formatter interface {
	// Format returns the rendered event, newline terminated
	Format(event core.LogEvent) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// NewFormatter creates a Formatter from cfg; nil or an empty type selects txt
func NewFormatter(cfg *config.FormatConfig, logger *log.Logger) (Formatter, error) {
	opts := config.DefaultFormatConfig()
	if cfg != nil {
		merged := *cfg
		if merged.Type == "" {
			merged.Type = opts.Type
		}
		if merged.Template == "" {
			merged.Template = opts.Template
		}
		if merged.TimestampFormat == "" {
			merged.TimestampFormat = opts.TimestampFormat
		}
		opts = &merged
	}

	switch opts.Type {
	case "json":
		return NewJSONFormatter(opts, logger)
	case "txt":
		return NewTextFormatter(opts, logger)
	case "raw":
		return NewRawFormatter(opts, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", opts.Type)
	}
}

func userID(event core.LogEvent) string {
	if event.UserID == nil {
		return ""
	}
	return *event.UserID
}
