package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "driverpay.db", cfg.DBPath)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.SnapshotSyncInterval)
	assert.Len(t, cfg.CORSOrigins, 2)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A config file and an environment override for the port
	// WHEN: Config is loaded
	// THEN: The environment wins; the file fills the rest

	dir := t.TempDir()
	yaml := "port: 9000\ndb_path: /tmp/pay.db\nenv: production\nsnapshot_sync_interval: 15m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("DRIVERPAY_PORT", "9100")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/tmp/pay.db", cfg.DBPath)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 15*time.Minute, cfg.SnapshotSyncInterval)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("DRIVERPAY_PORT", "70000")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Config{Env: "production", LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger(Config{LogLevel: "loud"})
	assert.Error(t, err)
}
