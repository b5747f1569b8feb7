package monitoring

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func restoreLoggers(t *testing.T) {
	t.Helper()
	origLogf, origDebugf := Logf, Debugf
	t.Cleanup(func() {
		Logf = origLogf
		Debugf = origDebugf
	})
}

func TestSetLogger(t *testing.T) {
	restoreLoggers(t)

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op which must not reach the previous logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestSetDebugLogger(t *testing.T) {
	restoreLoggers(t)

	var got string
	SetDebugLogger(func(format string, v ...interface{}) { got = format })
	Debugf("scoring %s", "x")
	assert.Equal(t, "scoring %s", got)

	SetDebugLogger(nil)
	assert.NotPanics(t, func() { Debugf("quiet") })
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}

func TestInit_ConsoleLevels(t *testing.T) {
	restoreLoggers(t)

	var buf bytes.Buffer
	logger, err := Init(LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	Logf("threshold %.2f", 0.25)
	Debugf("hidden at info level")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "threshold 0.25")
	assert.NotContains(t, out, "hidden at info level")
}

func TestInit_DebugEnablesDebugf(t *testing.T) {
	restoreLoggers(t)

	var buf bytes.Buffer
	_, err := Init(LoggerConfig{Level: "debug"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	Debugf("thresholding file %s", "a.csv")
	assert.Contains(t, buf.String(), "thresholding file a.csv")
}

func TestInit_FileSink(t *testing.T) {
	restoreLoggers(t)

	path := filepath.Join(t.TempDir(), "motion.log")
	var console bytes.Buffer
	logger, err := Init(LoggerConfig{Level: "info", File: path, MaxSizeMB: 1}, zapcore.AddSync(&console))
	require.NoError(t, err)

	Logf("to both sinks")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, console.String(), "to both sinks")
}

func TestInit_InvalidConfig(t *testing.T) {
	restoreLoggers(t)

	_, err := Init(LoggerConfig{Level: "chatty"}, nil)
	assert.Error(t, err)

	_, err = Init(LoggerConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}
