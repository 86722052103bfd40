package mqttws

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevelNone, "NONE"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestStdLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(&buf, LogLevelWarn)

	l.Debug("hidden debug", nil)
	l.Info("hidden info", nil)
	l.Warn("shown warn", nil)
	l.Error("shown error", LogFields{LogFieldTopic: "a/b"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error map[topic:a/b]")

	l.SetLevel(LogLevelNone)
	buf.Reset()
	l.Error("silenced", nil)
	assert.Empty(t, buf.String())
	assert.Equal(t, LogLevelNone, l.Level())
}

func TestStdLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLogger(&buf, LogLevelDebug)
	child := base.WithFields(LogFields{LogFieldURL: "ws://broker"})

	child.Info("connecting", LogFields{LogFieldClientID: "c1"})
	base.Info("plain", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "client_id:c1")
	assert.Contains(t, lines[0], "url:ws://broker")
	assert.True(t, strings.HasSuffix(lines[1], "[INFO] plain"))
}

func TestStdLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(&buf, LogLevelDebug, WithColor(true))
	l.Error("boom", nil)
	assert.Contains(t, buf.String(), "\x1b[31mERROR\x1b[0m")

	buf.Reset()
	l = NewStdLogger(&buf, LogLevelDebug, WithColor(false))
	l.Error("boom", nil)
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	assert.Equal(t, LogLevelNone, l.Level())
	assert.Same(t, l, l.WithFields(LogFields{"a": 1}))

	l.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, l.Level())
	l.Debug("ignored", nil)
}
