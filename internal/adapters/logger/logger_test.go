package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/adapters/logger"
	"go.trai.ch/zerr"
)

func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	l, ok := logger.New().(*logger.Logger)
	require.True(t, ok)
	var buf bytes.Buffer
	l.SetOutput(&buf)
	return l, &buf
}

func TestInfo_IncludesAttributes(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	l, buf := newTestLogger(t)

	l.Info("installed package", "package", "lpeg", "version", "1.1.0-1")

	out := buf.String()
	assert.Contains(t, out, "installed package")
	assert.Contains(t, out, "package=lpeg")
	assert.Contains(t, out, "version=1.1.0-1")
}

func TestDebug_SuppressedUnlessVerbose(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	l, buf := newTestLogger(t)

	l.Debug("resolving", "package", "lpeg")
	assert.Empty(t, buf.String())

	l.SetVerbose(true)
	l.Debug("resolving", "package", "lpeg")
	assert.Contains(t, buf.String(), "resolving")
}

func TestError_RendersCauseChain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	l, buf := newTestLogger(t)

	base := zerr.New("connection refused")
	l.Error(zerr.Wrap(base, "failed to fetch manifest"))

	out := buf.String()
	assert.Contains(t, out, "Error: failed to fetch manifest")
	assert.Contains(t, out, "Caused by:")
	assert.Contains(t, out, "connection refused")
}

func TestError_JSONMode(t *testing.T) {
	l, buf := newTestLogger(t)
	l.SetJSON(true)

	l.Error(zerr.New("boom"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "operation failed", record["msg"])
	assert.Contains(t, record["error"], "boom")
}

func TestError_NilIsIgnored(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Error(nil)
	assert.Empty(t, buf.String())
}
