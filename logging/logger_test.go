package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level LogLevel) (*BridgeLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	cfg.AddSource = false
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestBridgeLoggerContext(t *testing.T) {
	l, buf := newTestLogger(LogLevelDebug)
	l.WithComponent("session").WithSession("s-1", "tcp://127.0.0.1:9559").WithContext("robot", "nao").Info("session.connected", "attempt", 1)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "session.connected", entry["msg"])
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, "tcp://127.0.0.1:9559", entry["endpoint"])
	assert.Equal(t, "nao", entry["robot"])
	assert.Equal(t, float64(1), entry["attempt"])
}

func TestBridgeLoggerWithDoesNotMutateParent(t *testing.T) {
	l, buf := newTestLogger(LogLevelInfo)
	_ = l.WithContext("k", "v")
	l.Info("plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["k"]
	assert.False(t, ok)
}

func TestBridgeLoggerLevels(t *testing.T) {
	l, buf := newTestLogger(LogLevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "w", lines[0]["msg"])
	assert.Equal(t, "e", lines[1]["msg"])
}

func TestLogCall(t *testing.T) {
	l, buf := newTestLogger(LogLevelDebug)
	l.LogCall("ALMemory", "getData", 3*time.Millisecond, nil)
	l.LogCall("ALMemory", "nope", time.Millisecond, errors.New("method not found"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "call.completed", lines[0]["msg"])
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "call.failed", lines[1]["msg"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "method not found", lines[1]["error"])
}

func TestLogDelivery(t *testing.T) {
	l, buf := newTestLogger(LogLevelDebug)
	l.LogDelivery("signal", 2, time.Millisecond)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "signal.delivered", lines[0]["msg"])
	assert.Equal(t, float64(2), lines[0]["handler_count"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warn"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", "k", 1)
		l.Warn("x")
		l.Error("x")
	})
}
