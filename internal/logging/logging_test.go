package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_LevelFollowsVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf})
	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger = New(Options{Output: &buf, Verbose: true})
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

// TestNew_JSON verifies the JSON encoder emits one object per line with
// the structured fields.
func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, JSON: true})
	logger.Info("worker started", zap.String("sync", "app"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker started", entry["msg"])
	assert.Equal(t, "app", entry["sync"])
	assert.Equal(t, "info", entry["level"])
}
