package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWithoutJaegerSkipsTracing(t *testing.T) {
	logger, shutdown, err := Configure(Config{})
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, shutdown(t.Context()))
}

func TestConfigureWritesToLogOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brioche.log")
	logger, shutdown, err := Configure(Config{LogOutput: path})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, shutdown(t.Context()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestDebugEnablesDebugLevel(t *testing.T) {
	logger, shutdown, err := Configure(Config{LogDebug: true})
	require.NoError(t, err)
	defer shutdown(t.Context())

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("BRIOCHE_JAEGER_ENDPOINT", "http://collector:4318")
	t.Setenv("BRIOCHE_LOG_OUTPUT", "/tmp/brioche.log")
	t.Setenv("BRIOCHE_LOG_DEBUG", "1")

	cfg := ConfigFromEnv()
	assert.Equal(t, "http://collector:4318", cfg.JaegerEndpoint)
	assert.Equal(t, "/tmp/brioche.log", cfg.LogOutput)
	assert.True(t, cfg.LogDebug)
}
