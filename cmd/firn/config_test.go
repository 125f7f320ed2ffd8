package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/firnlab/firn/pkg/config"
)

// The file config init writes must load back into the defaults it was
// generated from.
func TestDefaultConfigRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(defaultConfigDoc())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	want := config.GetDefaultConfig()
	require.Equal(t, want.Log.Level, cfg.Log.Level)
	require.Equal(t, want.History.Enabled, cfg.History.Enabled)
	require.Equal(t, want.History.Limit, cfg.History.Limit)
	require.Equal(t, want.Stats.PercentileLow, cfg.Stats.PercentileLow)
	require.Equal(t, want.Stats.PercentileHigh, cfg.Stats.PercentileHigh)
	require.Equal(t, want.Stats.Subsample, cfg.Stats.Subsample)
	require.Equal(t, want.Remote.Enabled, cfg.Remote.Enabled)
	require.Equal(t, want.Remote.Timeout, cfg.Remote.Timeout)
}
