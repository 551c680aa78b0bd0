package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, l)

	l, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelError, l)

	l, ok = ParseLevel("no")
	assert.True(t, ok)
	assert.Greater(t, l, LevelFatal)
}

func TestFatalLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelFatal, false)

	logger.Error("dropped")
	Fatal(logger, "max retries reached")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "level=FATAL")
	assert.Contains(t, out, "max retries reached")
}
