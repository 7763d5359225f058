package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Logger = (*MeshLogger)(nil)
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func newBufferLogger(level LogLevel) (*MeshLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestMeshLogger_ContextAttributes(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("engine").WithSession("s1", "inv-1").WithContext("k", "v").Info("hello", "count", 3)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0]["msg"])
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "s1", lines[0]["session_id"])
	assert.Equal(t, "inv-1", lines[0]["invocation_id"])
	assert.Equal(t, "v", lines[0]["k"])
	assert.EqualValues(t, 3, lines[0]["count"])
}

func TestMeshLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "w", lines[0]["msg"])
	assert.Equal(t, "e", lines[1]["msg"])
}

func TestMeshLogger_CloneIsolation(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)
	_ = base.WithContext("only", "child")
	base.Info("base")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["only"]
	assert.False(t, ok)
}

func TestMeshLogger_LogExternalCall(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.LogExternalCall("websearch", 20*time.Millisecond, false, errors.New("boom"))
	l.LogExternalCall("retrieval", time.Millisecond, true, nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "websearch", lines[0]["service"])
	assert.Equal(t, "DEBUG", lines[1]["level"])
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l, _ := newBufferLogger(LogLevelInfo)
	assert.Same(t, l, OrNoOp(l))
}

type captureLogger struct {
	NoOpLogger
	args [][]any
}

func (c *captureLogger) Info(_ string, args ...any) { c.args = append(c.args, args) }

func TestWith(t *testing.T) {
	t.Run("mesh logger", func(t *testing.T) {
		l, buf := newBufferLogger(LogLevelInfo)
		With(l, "session_id", "s1", "invocation_id", "inv-1", "query_len", 5).Info("routed")
		l.Info("plain")

		lines := decodeLines(t, buf)
		require.Len(t, lines, 2)
		assert.Equal(t, "s1", lines[0]["session_id"])
		assert.Equal(t, "inv-1", lines[0]["invocation_id"])
		assert.EqualValues(t, 5, lines[0]["query_len"])
		_, ok := lines[1]["session_id"]
		assert.False(t, ok, "the base logger is unchanged")
	})

	t.Run("component", func(t *testing.T) {
		l, buf := newBufferLogger(LogLevelInfo)
		With(With(l, "component", "memory"), "session_id", "s2").Warn("compaction failed")

		lines := decodeLines(t, buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "memory", lines[0]["component"])
		assert.Equal(t, "s2", lines[0]["session_id"])
		_, ok := lines[0]["invocation_id"]
		assert.False(t, ok)
	})

	t.Run("other logger", func(t *testing.T) {
		c := &captureLogger{}
		With(c, "session_id", "s1").Info("msg", "k", "v")
		require.Len(t, c.args, 1)
		assert.Equal(t, []any{"session_id", "s1", "k", "v"}, c.args[0])
	})

	t.Run("nil", func(t *testing.T) {
		assert.IsType(t, NoOpLogger{}, With(nil, "k", "v"))
	})
}
