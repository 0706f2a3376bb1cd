package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keepDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" WARN ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelInfo, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		lvl, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, lvl, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestSetup_JSON(t *testing.T) {
	keepDefault(t)
	var buf bytes.Buffer

	log := setup(&buf, "debug", "json")
	log.Debug("hello", "task_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.EqualValues(t, 7, entry["task_id"])
	assert.Same(t, log.Handler(), slog.Default().Handler())
}

func TestSetup_TextAndLevelFallback(t *testing.T) {
	keepDefault(t)
	var buf bytes.Buffer

	log := setup(&buf, "chatty", "text")
	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	assert.Contains(t, out, "invalid log level configured")
	assert.Contains(t, out, "msg=shown")
	assert.False(t, strings.Contains(out, "hidden"))
}
