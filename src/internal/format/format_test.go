// FILE: synctrack/src/internal/format/format_test.go
package format

import (
	"testing"
	"time"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

var testTime = time.Date(2023, 10, 27, 10, 30, 0, 0, time.UTC)

func testEvent() core.LogEvent {
	return core.NewLogEvent("target-app", primitive.NewObjectID(), core.SeverityWarn, "rate limit exceeded", "user-1", testTime)
}

func TestNewFormatter(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		name        string
		cfg         *config.FormatConfig
		expected    string
		expectError bool
	}{
		{name: "JSONFormatter", cfg: &config.FormatConfig{Type: "json"}, expected: "json"},
		{name: "TextFormatter", cfg: &config.FormatConfig{Type: "txt"}, expected: "txt"},
		{name: "RawFormatter", cfg: &config.FormatConfig{Type: "raw"}, expected: "raw"},
		{name: "DefaultToText", cfg: nil, expected: "txt"},
		{name: "EmptyTypeToText", cfg: &config.FormatConfig{Pretty: true}, expected: "txt"},
		{name: "UnknownFormatter", cfg: &config.FormatConfig{Type: "xml"}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			formatter, err := NewFormatter(tc.cfg, logger)
			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, formatter)
			} else {
				require.NoError(t, err)
				require.NotNil(t, formatter)
				assert.Equal(t, tc.expected, formatter.Name())
			}
		})
	}
}

func TestRawFormatter_Format(t *testing.T) {
	formatter, err := NewRawFormatter(nil, newTestLogger())
	require.NoError(t, err)

	output, err := formatter.Format(testEvent())
	require.NoError(t, err)
	assert.Equal(t, "rate limit exceeded\n", string(output))
}
