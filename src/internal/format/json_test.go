// FILE: synctrack/src/internal/format/json_test.go
package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestJSONFormatter_Format(t *testing.T) {
	logger := newTestLogger()
	event := testEvent()

	t.Run("BasicFormatting", func(t *testing.T) {
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(event)
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(output, &result), "Output should be valid JSON")

		assert.Equal(t, testTime.Format(time.RFC3339Nano), result["timestamp"])
		assert.Equal(t, "warn", result["level"])
		assert.Equal(t, "target-app", result["app_id"])
		assert.Equal(t, "user-1", result["user_id"])
		assert.Equal(t, event.LogSessionID.Hex(), result["session_id"])
		assert.Equal(t, "rate limit exceeded", result["message"])
		assert.True(t, strings.HasSuffix(string(output), "\n"), "Output should end with a newline")
	})

	t.Run("PrettyFormatting", func(t *testing.T) {
		formatter, err := NewJSONFormatter(&config.FormatConfig{Pretty: true}, logger)
		require.NoError(t, err)

		output, err := formatter.Format(event)
		require.NoError(t, err)
		assert.Contains(t, string(output), `  "level": "warn"`)
	})

	t.Run("AnonymousLocalEvent", func(t *testing.T) {
		local := core.NewLogEvent("logs", primitive.NilObjectID, core.SeverityInfo, "hello", "", testTime)
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(local)
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(output, &result))
		_, hasUser := result["user_id"]
		_, hasSession := result["session_id"]
		assert.False(t, hasUser)
		assert.False(t, hasSession)
	})

	t.Run("MessageIsJSONWithConflicts", func(t *testing.T) {
		jsonEvent := event
		jsonEvent.Message = `{"level":"debug","request_id":"abc-123"}`
		formatter, err := NewJSONFormatter(nil, logger)
		require.NoError(t, err)

		output, err := formatter.Format(jsonEvent)
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal(output, &result))
		assert.Equal(t, "abc-123", result["request_id"])
		assert.Equal(t, "warn", result["level"], "event fields take precedence")
		_, messageExists := result["message"]
		assert.False(t, messageExists)
	})
}
