// Command firn browses polar radar survey archives as a lazy tree:
// directories, pik1 survey products, NetCDF datasets and S3 buckets all
// appear as nodes that fetch their children and decode their data only
// when asked.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firnlab/firn/internal/logger"
	"github.com/firnlab/firn/pkg/config"
	"github.com/firnlab/firn/pkg/history"
	"github.com/firnlab/firn/pkg/repo"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "firn",
	Short:         "Browse polar radar survey data as a lazy tree",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session bundles what every subcommand needs: the loaded configuration,
// a store reading from the real filesystem and the optional history.
type session struct {
	cfg   *config.Config
	store *repo.Store
	hist  *history.Store
}

// newSession loads config, configures the logger and builds the store.
// The --log-level flag overrides the configured level.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)

	registry, err := config.NewRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hist, err := config.OpenHistory(cfg)
	if err != nil {
		// The history is a convenience; a broken database should not
		// keep the tree from loading.
		logger.Warn("history unavailable: %v", err)
		hist = nil
	}

	return &session{
		cfg:   cfg,
		store: repo.NewStore(config.NewFilesystem(), registry),
		hist:  hist,
	}, nil
}

func (s *session) close() {
	if s.hist != nil {
		if err := s.hist.Close(); err != nil {
			logger.Warn("closing history: %v", err)
		}
	}
}

// load inserts filePath as a root-level item, forcing the format when one
// is named, and records the load into the history.
func (s *session) load(filePath, format string) (string, error) {
	var handle string
	var err error
	if format != "" {
		handle, err = s.store.LoadAs(format, filePath)
		if err != nil {
			return "", err
		}
	} else {
		handle = s.store.Load(filePath)
	}

	if s.hist != nil {
		name := format
		if name == "" {
			if f, ok := s.store.Registry().Match(filePath); ok {
				name = f.Name
			}
		}
		if err := s.hist.Touch(filePath, name); err != nil {
			logger.Warn("recording %s: %v", filePath, err)
		}
	}
	return handle, nil
}

// resolveUnder resolves an optional node path beneath a loaded item's
// handle, expanding lazily along the way.
func (s *session) resolveUnder(handle, nodePath string) (repo.Item, error) {
	full := handle
	if nodePath != "" {
		full = handle + "/" + strings.Trim(nodePath, "/")
	}
	return s.store.Resolve(full)
}

// allAxes builds the selection expression covering every axis of a
// sliceable item, e.g. ":, :" for a radargram.
func allAxes(it repo.Item) string {
	nd := repo.NDim(it)
	if nd == 0 {
		return ""
	}
	axes := make([]string, nd)
	for i := range axes {
		axes[i] = ":"
	}
	return strings.Join(axes, ", ")
}
