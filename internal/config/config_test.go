package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("FIELDOPS_TEST_MODE", "true")
	t.Setenv("FIELDOPS_LOGGING_LEVEL", "debug")
	t.Setenv("FIELDOPS_DATABASE_MAX_OPEN", "7")
	t.Setenv("DATABASE_URL", "sqlite:/tmp/fieldops.db")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.TestMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 7, cfg.Database.MaxOpen)
	assert.Equal(t, "sqlite:/tmp/fieldops.db", cfg.Database.URL)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.Database.MaxLifetime)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: \"8181\"\njwt:\n  secret: s3cret\nlogging:\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "fieldops", cfg.Tracing.ServiceName)
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{TestMode: true}
	SetDefaults(cfg)
	cfg.Logging.Level = "verbose"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Level")
}

func TestValidate_RequiresSecretOutsideTestMode(t *testing.T) {
	cfg := &Config{}
	SetDefaults(cfg)

	assert.Error(t, Validate(cfg))

	cfg.JWT.Secret = "secret"
	assert.NoError(t, Validate(cfg))
}
