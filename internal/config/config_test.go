package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches to an empty directory so no stray dirana.yaml or .env is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 3, cfg.Retention)
	assert.Equal(t, 5000, cfg.BatchSize)
	assert.Equal(t, 8, cfg.ChannelDepth)
	assert.Equal(t, int64(150000), cfg.ProgressEvery)
	assert.Equal(t, byte('\\'), cfg.SeparatorByte())
	assert.Equal(t, "memory", cfg.IndexMode)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Server.ListDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 100\nseparator: /\nlog:\n  level: debug\n"), 0644))
	t.Setenv("DIRANA_BATCH_SIZE", "250")
	t.Setenv("DIRANA_LOG_FORMAT", "json")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, byte('/'), cfg.SeparatorByte())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	opts := cfg.IngestOptions()
	assert.Equal(t, 250, opts.BatchSize)
	assert.Equal(t, byte('/'), opts.Separator)
}

func TestLoadServerSettingsFromEnv(t *testing.T) {
	chdir(t)
	t.Setenv("DIRANA_SERVER_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	t.Setenv("DIRANA_SERVER_LIST_DIR", "/srv/lists")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/srv/lists", cfg.Server.ListDir)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DIRANA_RETENTION=7\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("DIRANA_RETENTION") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retention)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t)
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t)
	base, err := Load(viper.New(), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"negative retention", func(c *Config) { c.Retention = -1 }},
		{"long separator", func(c *Config) { c.Separator = "//" }},
		{"empty separator", func(c *Config) { c.Separator = "" }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero depth", func(c *Config) { c.ChannelDepth = 0 }},
		{"zero progress", func(c *Config) { c.ProgressEvery = 0 }},
		{"bad index mode", func(c *Config) { c.IndexMode = "skip" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
