package rtlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedLogger(buf *bytes.Buffer, min Level) *Logger {
	l := New(buf, min)
	l.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return l
}

func TestLogBelowMinimumIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelWarn)
	l.Info("hello %s", "world")
	assert.Empty(t, buf.String())
}

func TestLogAtOrAboveMinimumIsWritten(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelInfo)
	l.Info("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), "INFO")
}

func TestErrorLevelAlwaysWritesAboveAnyMinimum(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelError)
	l.Debug("nope")
	l.Error("boom %d", 42)
	out := buf.String()
	assert.False(t, strings.Contains(out, "nope"))
	assert.True(t, strings.Contains(out, "boom 42"))
}
