package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/firnlab/firn/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the firn configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetDefaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		}

		out, err := yaml.Marshal(defaultConfigDoc())
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// configDoc mirrors config.Config for YAML emission. Durations become
// strings like "30s" so the written file reads the way Load parses it.
type configDoc struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	History struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
		Limit   int    `yaml:"limit"`
	} `yaml:"history"`
	Stats struct {
		PercentileLow  float64 `yaml:"percentile_low"`
		PercentileHigh float64 `yaml:"percentile_high"`
		Subsample      bool    `yaml:"subsample"`
	} `yaml:"stats"`
	Remote struct {
		Enabled         bool   `yaml:"enabled"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		Timeout         string `yaml:"timeout"`
	} `yaml:"remote"`
}

func defaultConfigDoc() *configDoc {
	cfg := config.GetDefaultConfig()
	var doc configDoc
	doc.Log.Level = cfg.Log.Level
	doc.History.Enabled = cfg.History.Enabled
	doc.History.Path = cfg.History.Path
	doc.History.Limit = cfg.History.Limit
	doc.Stats.PercentileLow = cfg.Stats.PercentileLow
	doc.Stats.PercentileHigh = cfg.Stats.PercentileHigh
	doc.Stats.Subsample = cfg.Stats.Subsample
	doc.Remote.Enabled = cfg.Remote.Enabled
	doc.Remote.Region = cfg.Remote.Region
	doc.Remote.Bucket = cfg.Remote.Bucket
	doc.Remote.Endpoint = cfg.Remote.Endpoint
	doc.Remote.AccessKeyID = cfg.Remote.AccessKeyID
	doc.Remote.SecretAccessKey = cfg.Remote.SecretAccessKey
	doc.Remote.Timeout = cfg.Remote.Timeout.String()
	return &doc
}
