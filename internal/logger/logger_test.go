package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.Info("review finished", "score", 8.5)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "review finished", entry["msg"])
	assert.Equal(t, 8.5, entry["score"])
}

func TestNewTextFormatIsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "plain"}, &buf)

	log.Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	log.Debug("dropped")
	log.Info("dropped too")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "loud", Format: "text"}, &buf)

	log.Debug("dropped")
	assert.Empty(t, buf.String())

	log.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}
