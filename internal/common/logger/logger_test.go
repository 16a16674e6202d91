package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestZapAdapter_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"taskType": "process-command"})

	log.Warn("gateway retry", map[string]interface{}{
		"attempt": 2,
		"error":   errors.New("connection reset"),
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "gateway retry", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "process-command", fields["taskType"])
	assert.Equal(t, int64(2), fields["attempt"])
	assert.Equal(t, "connection reset", fields["error"])
}

func TestNewWithOutput_FallsBackOnBadSink(t *testing.T) {
	l := NewWithOutput("info", "json", "/nonexistent-dir/x/y.log")
	assert.NotNil(t, l)
}
