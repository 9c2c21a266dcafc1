// Package config provides configuration loading and management for samvolume.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Mobinapournemat/micro-sam/pkg/propagation"
	"github.com/Mobinapournemat/micro-sam/pkg/reconstruction"
	"github.com/Mobinapournemat/micro-sam/pkg/segmenter"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Propagation controls how a mask is carried from slice to slice
	Propagation propagation.Config `yaml:"propagation"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many objects are propagated concurrently
		NumWorkers int `yaml:"numWorkers"`

		// SeedSlice is the slice holding the seed labels; -1 selects the middle slice
		SeedSlice int `yaml:"seedSlice"`

		// MinObjectSize drops seed objects with fewer pixels
		MinObjectSize int `yaml:"minObjectSize"`

		// MaxObjectSize drops seed objects with more pixels; 0 disables the limit
		MaxObjectSize int `yaml:"maxObjectSize"`

		// MergePolicy resolves voxels claimed by more than one object
		MergePolicy reconstruction.MergePolicy `yaml:"mergePolicy"`
	} `yaml:"processing"`

	// Segmenter parameters for the built-in intensity segmenter
	Segmenter segmenter.Params `yaml:"segmenter"`

	// Output parameters
	Output struct {
		// SavePreviews writes the label volume as PNG slice sequences
		SavePreviews bool `yaml:"savePreviews"`

		// PreviewDir is where previews are written
		PreviewDir string `yaml:"previewDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Propagation = propagation.DefaultConfig()

	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.SeedSlice = -1
	cfg.Processing.MinObjectSize = 50
	cfg.Processing.MergePolicy = reconstruction.MergeOverwrite

	cfg.Segmenter = segmenter.DefaultParams()

	cfg.Output.SavePreviews = false
	cfg.Output.PreviewDir = "label_slices"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the whole configuration and reports every problem found
func (c *Config) Validate() error {
	var err error
	err = multierr.Append(err, c.Propagation.Validate())
	if c.Processing.NumWorkers < 1 {
		err = multierr.Append(err, fmt.Errorf("numWorkers must be at least 1, got %d", c.Processing.NumWorkers))
	}
	if c.Processing.MinObjectSize < 0 {
		err = multierr.Append(err, fmt.Errorf("minObjectSize must not be negative, got %d", c.Processing.MinObjectSize))
	}
	if c.Processing.MaxObjectSize < 0 {
		err = multierr.Append(err, fmt.Errorf("maxObjectSize must not be negative, got %d", c.Processing.MaxObjectSize))
	}
	if c.Processing.MaxObjectSize > 0 && c.Processing.MaxObjectSize < c.Processing.MinObjectSize {
		err = multierr.Append(err, fmt.Errorf("maxObjectSize %d below minObjectSize %d",
			c.Processing.MaxObjectSize, c.Processing.MinObjectSize))
	}
	if !c.Processing.MergePolicy.Valid() {
		err = multierr.Append(err, fmt.Errorf("unknown mergePolicy %q", c.Processing.MergePolicy))
	}
	if c.Segmenter.Tolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("segmenter tolerance must not be negative, got %v", c.Segmenter.Tolerance))
	}
	return err
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
