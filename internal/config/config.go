// Package config loads settings from an optional YAML file, a .env file and
// DIRANA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Micos01/dir-analysis/internal/ingest"
	"github.com/Micos01/dir-analysis/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DIRANA"

// Config stores all configuration of the application.
type Config struct {
	DataDir       string       `mapstructure:"data_dir"`
	Retention     int          `mapstructure:"retention"`
	BatchSize     int          `mapstructure:"batch_size"`
	ChannelDepth  int          `mapstructure:"channel_depth"`
	ProgressEvery int64        `mapstructure:"progress_every"`
	Separator     string       `mapstructure:"separator"`
	IndexMode     string       `mapstructure:"index_mode"`
	SQLiteTmpDir  string       `mapstructure:"sqlite_tmp_dir"`
	ListenAddr    string       `mapstructure:"listen_addr"`
	Server        ServerConfig `mapstructure:"server"`
	Log           LogConfig    `mapstructure:"log"`
}

// ServerConfig controls what the HTTP API lets browsers and clients do.
type ServerConfig struct {
	// AllowedOrigins are the cross-origin front ends allowed to call the API.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ListDir is the only directory POST /api/lists may write into. Empty
	// disables the endpoint.
	ListDir string `mapstructure:"list_dir"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	opts := ingest.DefaultOptions()
	v.SetDefault("data_dir", "./data")
	v.SetDefault("retention", 3)
	v.SetDefault("batch_size", opts.BatchSize)
	v.SetDefault("channel_depth", opts.ChannelDepth)
	v.SetDefault("progress_every", opts.ProgressEvery)
	v.SetDefault("separator", string(opts.Separator))
	v.SetDefault("index_mode", opts.IndexMode)
	v.SetDefault("sqlite_tmp_dir", "")
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.list_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration into a Config. configPath may be empty, in which
// case dirana.yaml is looked up in the working directory and the user config
// directory; a missing file is not an error. Environment variables override
// the file, and values already set on v (such as bound flags) override both.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	loadDotEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "dirana"))
		}
		v.SetConfigName("dirana")
		v.SetConfigType("yaml")
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %d", c.Retention)
	}
	if len(c.Separator) != 1 {
		return fmt.Errorf("separator must be a single byte, got %q", c.Separator)
	}
	return c.IngestOptions().Validate()
}

// SeparatorByte returns the report path separator.
func (c *Config) SeparatorByte() byte {
	if len(c.Separator) == 0 {
		return 0
	}
	return c.Separator[0]
}

// IngestOptions converts the settings into pipeline options.
func (c *Config) IngestOptions() *ingest.Options {
	return ingest.DefaultOptions().
		WithBatchSize(c.BatchSize).
		WithChannelDepth(c.ChannelDepth).
		WithProgressEvery(c.ProgressEvery).
		WithSeparator(c.SeparatorByte()).
		WithIndexMode(c.IndexMode, c.SQLiteTmpDir)
}

// Logging returns the logging settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
