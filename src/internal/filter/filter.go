// FILE: synctrack/src/internal/filter/filter.go
package filter

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
)

// Filter applies regex-based filtering to sync diagnostics
type Filter struct {
	config   config.FilterConfig
	patterns []*regexp.Regexp
	mu       sync.RWMutex
	logger   *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalMatched   atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewFilter creates a new filter from configuration
func NewFilter(cfg config.FilterConfig, logger *log.Logger) (*Filter, error) {
	if cfg.Type == "" {
		cfg.Type = config.FilterTypeInclude
	}
	if cfg.Logic == "" {
		cfg.Logic = config.FilterLogicOr
	}

	f := &Filter{
		config:   cfg,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
		logger:   logger,
	}

	for i, pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}

	logger.Debug("msg", "Filter created",
		"component", "filter",
		"type", cfg.Type,
		"logic", cfg.Logic,
		"pattern_count", len(cfg.Patterns))

	return f, nil
}

// Apply reports whether a diagnostic should be passed through.
// Patterns see the text "<level> <message>".
func (f *Filter) Apply(level core.Severity, message string) bool {
	f.totalProcessed.Add(1)

	f.mu.RLock()
	patterns := f.patterns
	f.mu.RUnlock()

	// No patterns means pass everything
	if len(patterns) == 0 {
		return true
	}

	matched := f.matches(patterns, level.String()+" "+message)
	if matched {
		f.totalMatched.Add(1)
	}

	shouldPass := false
	switch f.config.Type {
	case config.FilterTypeInclude:
		shouldPass = matched
	case config.FilterTypeExclude:
		shouldPass = !matched
	}

	if !shouldPass {
		f.totalDropped.Add(1)
	}

	return shouldPass
}

func (f *Filter) matches(patterns []*regexp.Regexp, text string) bool {
	switch f.config.Logic {
	case config.FilterLogicOr:
		for _, re := range patterns {
			if re.MatchString(text) {
				return true
			}
		}
		return false

	case config.FilterLogicAnd:
		for _, re := range patterns {
			if !re.MatchString(text) {
				return false
			}
		}
		return true

	default:
		// Shouldn't happen after validation
		f.logger.Warn("msg", "Unknown filter logic",
			"component", "filter",
			"logic", f.config.Logic)
		return false
	}
}

// GetStats returns filter statistics
func (f *Filter) GetStats() map[string]any {
	f.mu.RLock()
	count := len(f.patterns)
	f.mu.RUnlock()

	return map[string]any{
		"type":            f.config.Type,
		"logic":           f.config.Logic,
		"pattern_count":   count,
		"total_processed": f.totalProcessed.Load(),
		"total_matched":   f.totalMatched.Load(),
		"total_dropped":   f.totalDropped.Load(),
	}
}
