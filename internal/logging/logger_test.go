package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(level)
	logger.SetOutput(log.New(&buf, "", 0))
	return logger, &buf
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug allowed at debug", LevelDebug, LevelDebug, true},
		{"error allowed at debug", LevelDebug, LevelError, true},
		{"debug blocked at info", LevelInfo, LevelDebug, false},
		{"info allowed at info", LevelInfo, LevelInfo, true},
		{"info blocked at warn", LevelWarn, LevelInfo, false},
		{"warn allowed at warn", LevelWarn, LevelWarn, true},
		{"warn blocked at error", LevelError, LevelWarn, false},
		{"error allowed at error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(tt.minLevel)

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("tick")
			case LevelInfo:
				logger.Info("tick")
			case LevelWarn:
				logger.Warn("tick")
			case LevelError:
				logger.Error("tick")
			}

			if tt.shouldLog {
				assert.Contains(t, buf.String(), "tick")
			} else {
				assert.Empty(t, buf.String())
			}
			assert.Equal(t, tt.logLevel >= tt.minLevel, logger.Enabled(tt.logLevel))
		})
	}
}

func TestLoggerFieldsAreSorted(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.WithFields(map[string]interface{}{
		"session": "abc",
		"addr":    "localhost:1338",
	}).Warn("editor disconnected", "row", 42)

	assert.Equal(t, "WARN: editor disconnected | addr=localhost:1338 row=42 session=abc\n", buf.String())
}

func TestLoggerComponent(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.Component("controller").Info("connected")

	assert.Contains(t, buf.String(), "INFO: connected")
	assert.Contains(t, buf.String(), "component=controller")
}

func TestLoggerChildDoesNotModifyParent(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	_ = logger.With("session", "abc123")
	logger.Info("parent")

	assert.NotContains(t, buf.String(), "session=abc123")
}

func TestLoggerInlineKeyVals(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.Error("track lookup failed", "error", errors.New("unknown track"), "index", 7)

	output := buf.String()
	assert.Contains(t, output, `error="unknown track"`)
	assert.Contains(t, output, "index=7")
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.Enabled(LevelError))
	logger.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelWarn, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"simple string", "hello", "hello"},
		{"empty string", "", `""`},
		{"string with spaces", "hello world", `"hello world"`},
		{"integer", 42, "42"},
		{"float", 0.5, "0.5"},
		{"error", errors.New("oops"), `"oops"`},
		{"stringer", LevelInfo, "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatValue(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.True(t, strings.HasPrefix(Level(99).String(), "LEVEL("))
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(log.New(&buf, "", 0))
	SetLevel(LevelWarn)
	defer SetOutput(log.New(&bytes.Buffer{}, "", 0))

	Debug("debug message")
	assert.Empty(t, buf.String())

	Warn("warn message")
	assert.Contains(t, buf.String(), "WARN: warn message")

	buf.Reset()
	With("component", "test").Error("error message")
	assert.Contains(t, buf.String(), "component=test")
}
