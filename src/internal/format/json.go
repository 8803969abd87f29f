// FILE: synctrack/src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"
	"time"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces one JSON object per event
type JSONFormatter struct {
	config *config.FormatConfig
	logger *log.Logger
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *config.FormatConfig, logger *log.Logger) (*JSONFormatter, error) {
	if opts == nil {
		opts = config.DefaultFormatConfig()
	}
	return &JSONFormatter{
		config: opts,
		logger: logger,
	}, nil
}

// Format transforms a single event into a JSON line.
// A message that is itself a JSON object is merged; event fields take precedence.
func (f *JSONFormatter) Format(event core.LogEvent) ([]byte, error) {
	output := map[string]any{
		"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		"level":     event.LogLevel.String(),
		"app_id":    event.AppID,
	}
	if !event.LogSessionID.IsZero() {
		output["session_id"] = event.LogSessionID.Hex()
	}
	if uid := userID(event); uid != "" {
		output["user_id"] = uid
	}

	var msgData map[string]any
	if err := json.Unmarshal([]byte(event.Message), &msgData); err == nil {
		for k, v := range msgData {
			if _, reserved := output[k]; !reserved {
				output[k] = v
			}
		}
	} else {
		output["message"] = event.Message
	}

	var result []byte
	var err error
	if f.config.Pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(result, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}
