package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: test\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9992", cfg.App.HTTPAddr)
	assert.Equal(t, "data/db/plan_runs.db", cfg.Store.RunsPath)
	assert.Equal(t, 20, cfg.Planner.MaxExactStops)
	assert.Equal(t, 4, cfg.Planner.MaxConcurrent)
	assert.Equal(t, 2, cfg.Market.QuoteScale)
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
planner:
  max_exact_stops: 12
  max_concurrent: 2
market:
  quote_scale: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 12, cfg.Planner.MaxExactStops)
	assert.Equal(t, 2, cfg.Planner.MaxConcurrent)
	assert.Equal(t, 4, cfg.Market.QuoteScale)
}

func TestLoadRejectsOversizedExactBound(t *testing.T) {
	path := writeConfig(t, "planner:\n  max_exact_stops: 25\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}
