package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		log, err := New(lvl)
		require.NoError(t, err, "level %q", lvl)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("not-a-level")
	require.Error(t, err)
}

func TestNew_DebugEnablesDebugCore(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_InfoDisablesDebugCore(t *testing.T) {
	log, err := New("info")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
