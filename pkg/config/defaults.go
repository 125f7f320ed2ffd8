package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	// DefaultLogLevel is the default minimum log level.
	DefaultLogLevel = "INFO"

	// DefaultHistoryLimit is the default number of recent files kept.
	DefaultHistoryLimit = 20

	// DefaultPercentileLow and DefaultPercentileHigh bound the value
	// range reported for sliceable items. The 2.5/97.5 pair trims
	// outliers from saturated radar returns without hiding the signal.
	DefaultPercentileLow  = 2.5
	DefaultPercentileHigh = 97.5

	// DefaultRemoteTimeout bounds each remote object-storage request.
	DefaultRemoteTimeout = 30 * time.Second
)

// DefaultHistoryPath returns the default directory for the history
// database, ~/.firn/history.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".firn", "history")
	}
	return filepath.Join(home, ".firn", "history")
}

// GetDefaultConfig returns a fully populated configuration with default
// values. This is what `firn config init` writes out.
func GetDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath(),
			Limit:   DefaultHistoryLimit,
		},
		Stats: StatsConfig{
			PercentileLow:  DefaultPercentileLow,
			PercentileHigh: DefaultPercentileHigh,
			Subsample:      true,
		},
		Remote: RemoteConfig{
			Enabled: false,
			Timeout: DefaultRemoteTimeout,
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults and
// normalizes the log level to uppercase. Booleans whose default is true
// (history.enabled, stats.subsample) are handled by viper defaults in
// setupViper, since a decoded false is indistinguishable from unset
// here.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	cfg.Log.Level = strings.ToUpper(cfg.Log.Level)

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath()
	}
	if cfg.History.Limit == 0 {
		cfg.History.Limit = DefaultHistoryLimit
	}

	if cfg.Stats.PercentileLow == 0 && cfg.Stats.PercentileHigh == 0 {
		cfg.Stats.PercentileLow = DefaultPercentileLow
		cfg.Stats.PercentileHigh = DefaultPercentileHigh
	}

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = DefaultRemoteTimeout
	}
}
