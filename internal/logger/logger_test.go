package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.log")

	log, err := logger.NewLogger(
		&config.LoggingConfig{Level: "debug", Format: "json", File: path, MaxSizeMB: 1},
		&config.AppConfig{Name: "pipeline-test", Environment: "test"},
	)
	require.NoError(t, err)

	logger.WithUser(log, "u-1", "Kari").Info("opportunity advanced")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "opportunity advanced")
	assert.Contains(t, string(data), `"user_id":"u-1"`)
	assert.Contains(t, string(data), `"app":"pipeline-test"`)
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := logger.NewLogger(
		&config.LoggingConfig{Level: "chatty"},
		&config.AppConfig{Name: "pipeline-test", Environment: "development"},
	)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))
	assert.True(t, log.Core().Enabled(0))
}
