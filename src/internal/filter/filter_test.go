// FILE: synctrack/src/internal/filter/filter_test.go
package filter

import (
	"testing"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestNewFilter(t *testing.T) {
	logger := newTestLogger()

	t.Run("SuccessWithDefaults", func(t *testing.T) {
		f, err := NewFilter(config.FilterConfig{Patterns: []string{"upload"}}, logger)
		require.NoError(t, err)
		assert.Equal(t, config.FilterTypeInclude, f.config.Type)
		assert.Equal(t, config.FilterLogicOr, f.config.Logic)
	})

	t.Run("ErrorInvalidRegex", func(t *testing.T) {
		f, err := NewFilter(config.FilterConfig{Patterns: []string{"["}}, logger)
		assert.Error(t, err)
		assert.Nil(t, f)
		assert.Contains(t, err.Error(), "invalid regex pattern")
	})
}

func TestFilter_Apply(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		name     string
		cfg      config.FilterConfig
		level    core.Severity
		message  string
		expected bool
	}{
		{
			name:     "IncludeOR_LowercaseNoMatch",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicOr, Patterns: []string{"upload", "download"}},
			level:    core.SeverityDetail,
			message:  "Uploaded 3 changes",
			expected: false,
		},
		{
			name:     "IncludeOR_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicOr, Patterns: []string{"Upload", "Download"}},
			level:    core.SeverityDetail,
			message:  "Uploaded 3 changes",
			expected: true,
		},
		{
			name:     "IncludeAND_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicAnd, Patterns: []string{"Opened", "Dog"}},
			level:    core.SeverityInfo,
			message:  "Opened store data.db",
			expected: false,
		},
		{
			name:     "ExcludeOR_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicOr, Patterns: []string{"^trace ", "^debug "}},
			level:    core.SeverityTrace,
			message:  "Wrote 5 LogEntry objects",
			expected: false,
		},
		{
			name:     "ExcludeOR_NoMatch",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicOr, Patterns: []string{"^trace ", "^debug "}},
			level:    core.SeverityError,
			message:  "Download failed",
			expected: true,
		},
		{
			name:     "ExcludeAND_MatchAll",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicAnd, Patterns: []string{"^warn", "cached"}},
			level:    core.SeverityWarn,
			message:  "Schema fetch failed, using 2 cached classes",
			expected: false,
		},
		{
			name:     "NoPatterns",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude},
			level:    core.SeverityInfo,
			message:  "anything",
			expected: true,
		},
		{
			name:     "MatchOnLevel",
			cfg:      config.FilterConfig{Patterns: []string{"^error"}},
			level:    core.SeverityError,
			message:  "Login failed",
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFilter(tc.cfg, logger)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f.Apply(tc.level, tc.message))
		})
	}
}

func TestFilter_Stats(t *testing.T) {
	f, err := NewFilter(config.FilterConfig{Type: config.FilterTypeExclude, Patterns: []string{"noise"}}, newTestLogger())
	require.NoError(t, err)

	f.Apply(core.SeverityInfo, "noise")
	f.Apply(core.SeverityInfo, "signal")

	stats := f.GetStats()
	assert.EqualValues(t, 2, stats["total_processed"])
	assert.EqualValues(t, 1, stats["total_matched"])
	assert.EqualValues(t, 1, stats["total_dropped"])
}
