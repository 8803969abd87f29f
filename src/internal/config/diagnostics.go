// FILE: synctrack/src/internal/config/diagnostics.go
package config

import (
	"fmt"
	"regexp"
)

type FilterType string

const (
	FilterTypeInclude FilterType = "include"
	FilterTypeExclude FilterType = "exclude"
)

type FilterLogic string

const (
	FilterLogicOr  FilterLogic = "or"
	FilterLogicAnd FilterLogic = "and"
)

// FilterConfig selects which sync diagnostics are shipped.
// Patterns are matched against "<level> <message>".
type FilterConfig struct {
	Type     FilterType  `toml:"type"`
	Logic    FilterLogic `toml:"logic"`
	Patterns []string    `toml:"patterns"`
}

// FormatConfig controls how diagnostics printed locally are rendered
type FormatConfig struct {
	// "txt", "json" or "raw"
	Type string `toml:"type"`

	// Indent json output
	Pretty bool `toml:"pretty"`

	// Go text/template for txt output
	Template string `toml:"template"`

	// Layout for FmtTime in templates
	TimestampFormat string `toml:"timestamp_format"`
}

const DefaultDiagnosticTemplate = "[{{.Timestamp | FmtTime}}] [{{.Level | ToUpper}}] {{.AppID}} - {{.Message}}"

// DefaultFormatConfig renders diagnostics as single text lines
func DefaultFormatConfig() *FormatConfig {
	return &FormatConfig{
		Type:            "txt",
		Template:        DefaultDiagnosticTemplate,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

func validateFilter(index int, cfg *FilterConfig) error {
	switch cfg.Type {
	case FilterTypeInclude, FilterTypeExclude, "":
	default:
		return fmt.Errorf("remote_log.filters[%d]: invalid type '%s' (must be 'include' or 'exclude')",
			index, cfg.Type)
	}

	switch cfg.Logic {
	case FilterLogicOr, FilterLogicAnd, "":
	default:
		return fmt.Errorf("remote_log.filters[%d]: invalid logic '%s' (must be 'or' or 'and')",
			index, cfg.Logic)
	}

	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("remote_log.filters[%d] pattern[%d] '%s': invalid regex: %w",
				index, i, pattern, err)
		}
	}
	return nil
}

func validateFormat(cfg *FormatConfig) error {
	if cfg == nil {
		return nil
	}
	switch cfg.Type {
	case "txt", "json", "raw", "":
	default:
		return fmt.Errorf("invalid diagnostic format: %s (valid: txt, json, raw)", cfg.Type)
	}
	return nil
}
