// FILE: synctrack/src/internal/format/text.go
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
)

// Produces human-readable text lines using templates
type TextFormatter struct {
	config   *config.FormatConfig
	template *template.Template
	logger   *log.Logger
}

// Creates a new text formatter
func NewTextFormatter(opts *config.FormatConfig, logger *log.Logger) (*TextFormatter, error) {
	if opts == nil {
		opts = config.DefaultFormatConfig()
	}
	f := &TextFormatter{
		config: opts,
		logger: logger,
	}

	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.config.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("diagnostic").Funcs(funcMap).Parse(f.config.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Formats the event using the template
func (f *TextFormatter) Format(event core.LogEvent) ([]byte, error) {
	data := map[string]any{
		"Timestamp": event.Timestamp,
		"Level":     event.LogLevel.String(),
		"AppID":     event.AppID,
		"UserID":    userID(event),
		"Message":   event.Message,
	}
	if !event.LogSessionID.IsZero() {
		data["SessionID"] = event.LogSessionID.Hex()
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		fallback := fmt.Sprintf("[%s] [%s] %s - %s\n",
			event.Timestamp.Format(f.config.TimestampFormat),
			strings.ToUpper(event.LogLevel.String()),
			event.AppID,
			event.Message)
		return []byte(fallback), nil
	}

	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// Returns the formatter name
func (f *TextFormatter) Name() string {
	return "txt"
}
