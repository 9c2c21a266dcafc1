package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mobinapournemat/micro-sam/pkg/propagation"
	"github.com/Mobinapournemat/micro-sam/pkg/reconstruction"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, propagation.ProjectMask, cfg.Propagation.Projection)
	assert.Equal(t, 0.8, cfg.Propagation.IoUThreshold)
	assert.Equal(t, -1, cfg.Processing.SeedSlice)
	assert.Equal(t, reconstruction.MergeOverwrite, cfg.Processing.MergePolicy)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
propagation:
  projection: points
  iouThreshold: 0.65
  boxExtension: 0.1
  stopUpper: true
processing:
  mergePolicy: first
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, propagation.ProjectPoints, cfg.Propagation.Projection)
	assert.Equal(t, 0.65, cfg.Propagation.IoUThreshold)
	assert.Equal(t, 0.1, cfg.Propagation.BoxExtension)
	assert.True(t, cfg.Propagation.StopUpper)
	assert.False(t, cfg.Propagation.StopLower)
	assert.Equal(t, reconstruction.MergeFirstWins, cfg.Processing.MergePolicy)
	assert.Equal(t, 50, cfg.Processing.MinObjectSize, "unset fields keep defaults")
}

func TestLoadConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("propagation: [unclosed"), 0644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Propagation.StopLower = true
	cfg.Processing.NumWorkers = 3
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Propagation.IoUThreshold = 0
	cfg.Processing.NumWorkers = 0
	cfg.Processing.MergePolicy = "random"
	cfg.Processing.MinObjectSize = 100
	cfg.Processing.MaxObjectSize = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, propagation.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "numWorkers")
	assert.Contains(t, err.Error(), "mergePolicy")
	assert.Contains(t, err.Error(), "maxObjectSize")
}
