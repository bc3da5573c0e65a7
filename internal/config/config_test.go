package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "./data", cfg.Store.Dir)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Store.ConnectAttempts)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Ingest.Strict)
	assert.Equal(t, "ISO-8859-1", cfg.Ingest.Encoding)
	assert.Equal(t, "/tmp/reportsync", cfg.Ingest.TempDir)
	assert.Equal(t, 200, cfg.Ingest.DeleteChunk)
	assert.Equal(t, 3, cfg.Ingest.SyncAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/reports
  max_conns: 12
log:
  level: debug
  format: console
ingest:
  strict: true
  policies:
    siif_rf602: "replace_by_key(ejercicio)"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/reports", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(12), cfg.Store.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Ingest.Strict)
	assert.Equal(t, map[string]string{"siif_rf602": "replace_by_key(ejercicio)"}, cfg.Ingest.Policies)
	// Defaults still apply for unset values
	assert.Equal(t, "ISO-8859-1", cfg.Ingest.Encoding)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  dir: /var/lib/reportsync
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("REPORTSYNC_STORE_DIR", "/srv/reports")
	t.Setenv("REPORTSYNC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "/srv/reports", cfg.Store.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("REPORTSYNC_INGEST_STRICT", "true")
	t.Setenv("REPORTSYNC_INGEST_ENCODING", "windows-1252")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Ingest.Strict)
	assert.Equal(t, "windows-1252", cfg.Ingest.Encoding)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr string
	}{
		{"sqlite", StoreConfig{Driver: "sqlite", Dir: "./data"}, ""},
		{"sqlite without dir", StoreConfig{Driver: "sqlite"}, "store.dir"},
		{"postgres", StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x"}, ""},
		{"postgres without url", StoreConfig{Driver: "postgres"}, "store.database_url"},
		{"unknown driver", StoreConfig{Driver: "mysql"}, "unsupported store driver"},
		{"negative pool", StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x", MaxConns: -1}, "store.max_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: tt.store}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
