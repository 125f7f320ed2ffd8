// Package config loads and validates the firn configuration from file,
// environment and defaults, and builds the components the CLI wires
// together from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures everything a browsing session can tune: logging, the
// recent-files history, the statistics shown for sliceable items and the
// optional remote archive access.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FIRN_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Log controls log output behavior.
	Log LogConfig `mapstructure:"log"`

	// History configures the persistent recent-files store.
	History HistoryConfig `mapstructure:"history"`

	// Stats configures the summary statistics computed for sliceable
	// items.
	Stats StatsConfig `mapstructure:"stats"`

	// Remote configures access to survey archives in S3-compatible
	// object storage.
	Remote RemoteConfig `mapstructure:"remote"`
}

// LogConfig controls logging behavior.
type LogConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// HistoryConfig controls the recent-files store.
type HistoryConfig struct {
	// Enabled turns the history on. When false nothing is recorded and
	// `firn recent` reports an empty list.
	Enabled bool `mapstructure:"enabled"`

	// Path is the directory holding the history database.
	Path string `mapstructure:"path"`

	// Limit caps how many entries are kept.
	Limit int `mapstructure:"limit" validate:"gte=1,lte=1000"`
}

// StatsConfig controls the percentile range and subsampling used when
// summarizing sliceable items.
type StatsConfig struct {
	// PercentileLow and PercentileHigh bound the displayed value range.
	PercentileLow  float64 `mapstructure:"percentile_low" validate:"gte=0,lte=100"`
	PercentileHigh float64 `mapstructure:"percentile_high" validate:"gte=0,lte=100"`

	// Subsample decimates large arrays before computing percentiles.
	Subsample bool `mapstructure:"subsample"`
}

// RemoteConfig controls access to S3-hosted survey archives.
type RemoteConfig struct {
	// Enabled registers the s3:// format so archives load from object
	// storage. Requires Region and Bucket.
	Enabled bool `mapstructure:"enabled"`

	// Region is the bucket's region.
	Region string `mapstructure:"region"`

	// Bucket is the default bucket offered to `firn tree s3://...`
	// completions; loads may still name any bucket explicitly.
	Bucket string `mapstructure:"bucket"`

	// Endpoint overrides the S3 endpoint, for MinIO and compatible
	// stores.
	Endpoint string `mapstructure:"endpoint"`

	// AccessKeyID and SecretAccessKey select static credentials. When
	// empty the default AWS credential chain applies.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// Timeout bounds each remote request.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to a config file; empty uses the default location
//     and tolerates the file being absent.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// location. Environment variables use the FIRN_ prefix with underscores,
// for example FIRN_LOG_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FIRN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults for fields whose zero value is not the default. Everything
	// else is handled by ApplyDefaults after decoding.
	v.SetDefault("history.enabled", true)
	v.SetDefault("stats.subsample", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is acceptable; the defaults stand in.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory, preferring
// XDG_CONFIG_HOME and falling back to ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "firn")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "firn")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
