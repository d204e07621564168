package logger

import (
	"os"
	"path/filepath"
	"testing"

	"pestops-bknd/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	l := New(&config.Config{Environment: "production", LogLevel: "info", LogFile: path})

	l.Info("sync completed", zap.String("agent_id", "agent-1"))
	l.Debug("not written at info level")
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"sync completed"`)
	assert.Contains(t, string(data), `"agent_id":"agent-1"`)
	assert.NotContains(t, string(data), "not written")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
