package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/logger"
)

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
store:
  driver: postgres
  dsn: postgres://localhost/clientpulse
retry:
  max_attempts: 6
  max_interval: 2s
log:
  level: DEBUG
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	t.Setenv("CLIENTPULSE_STORE_DSN", "postgres://db/override")
	t.Setenv("CLIENTPULSE_SERVER_ADDR", ":9999")
	t.Setenv("CLIENTPULSE_RECONCILE_ENABLED", "true")
	t.Setenv("CLIENTPULSE_RECONCILE_INTERVAL", "1m")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://db/override", cfg.Store.DSN)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.MaxInterval)
	assert.Equal(t, 25*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.True(t, cfg.Reconcile.Enabled)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)

	lc := cfg.LoggerConfig()
	assert.Equal(t, logger.DEBUG, lc.Level)
	assert.Equal(t, logger.FormatJSON, lc.Format)

	p := cfg.RetryPolicy()
	assert.Equal(t, 6, p.MaxAttempts)
}

func TestLoadFile_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CLIENTPULSE_STORE_DRIVER", "redis")
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Store.Driver = "mongodb"
	cfg.Store.DSN = "mongodb://localhost:27017"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Store, loaded.Store)
	assert.Equal(t, cfg.Retry, loaded.Retry)
}

func TestPath_HonoursEnv(t *testing.T) {
	t.Setenv("CLIENTPULSE_CONFIG", "/tmp/custom.yaml")
	assert.Equal(t, "/tmp/custom.yaml", Path())
}
