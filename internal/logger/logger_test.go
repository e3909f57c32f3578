package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetVerbose(t *testing.T) {
	defer Reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "test message arg", entry["msg"])
	assert.Contains(t, entry, "ts")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("hidden")
	Section("Hidden")
	Info("hidden too")

	assert.Empty(t, buf.String())
}

func TestWarnAndError_AlwaysEmitted(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Warn("sidecar %s invalid", "a.meta.json")
	Error("boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"sidecar a.meta.json invalid"`)
	assert.Contains(t, lines[1], `"error"`)
}

func TestSetLevel_Info(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(zapcore.InfoLevel)

	Info("listening on %s", ":8000")

	assert.Contains(t, buf.String(), "listening on :8000")
}

func TestSetFormat_Console(t *testing.T) {
	defer Reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat(FormatConsole)

	Warn("plain")

	assert.Contains(t, buf.String(), "WARN")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestReplace_Observer(t *testing.T) {
	defer Reset()

	core, logs := observer.New(zap.DebugLevel)
	Replace(zap.New(core))

	Section("Query Execution")
	Named("sqlite").Info("opened", zap.String("path", "/tmp/index.db"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "=== Query Execution ===", logs.All()[0].Message)
	assert.Equal(t, "sqlite", logs.All()[1].LoggerName)
	assert.Equal(t, "/tmp/index.db", logs.All()[1].ContextMap()["path"])
}
