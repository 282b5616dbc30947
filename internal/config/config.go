// Package config loads segmentation parameters from YAML files and
// provides defaults matching the reference histology workflow.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from YAML.
type Config struct {
	Segmentation struct {
		// CellMaxArea is the maximum expected single-cell area in pixels.
		// The hole-cleaning heuristics derive their thresholds from it
		// (area/10 for small holes, area/2 for near-circular inclusions).
		CellMaxArea float64 `yaml:"cellMaxArea"`

		// CellMinCircularity is the minimum circularity (4*pi*area/perimeter^2)
		// above which an interior hole is treated as a mis-thresholded
		// inclusion and filled.
		CellMinCircularity float64 `yaml:"cellMinCircularity"`

		// SlideThreshold is the static threshold used by the slide segmenter.
		SlideThreshold int `yaml:"slideThreshold"`

		// SlideMorphIterations are the closing/opening/closing iteration
		// counts of the slide segmenter's morphology chain.
		SlideMorphIterations []int `yaml:"slideMorphIterations"`
	} `yaml:"segmentation"`

	Stain struct {
		// Matrix overrides the standard 3x3 stain deconvolution kernel.
		// Empty means use the built-in standard kernel.
		Matrix [][]float64 `yaml:"matrix"`
	} `yaml:"stain"`

	Runtime struct {
		// Workers is the number of tiles processed concurrently.
		Workers int `yaml:"workers"`

		// LogLevel is one of debug, info, warn, error.
		LogLevel string `yaml:"logLevel"`
	} `yaml:"runtime"`
}

// Default returns a configuration with default values.
func Default() *Config {
	cfg := &Config{}

	cfg.Segmentation.CellMaxArea = 4000
	cfg.Segmentation.CellMinCircularity = 0.8
	cfg.Segmentation.SlideThreshold = 120
	cfg.Segmentation.SlideMorphIterations = []int{1, 3, 7}

	cfg.Runtime.Workers = runtime.NumCPU()
	cfg.Runtime.LogLevel = "info"

	return cfg
}

// Load reads configuration from a YAML file, merging it over defaults.
// A missing file is not an error; defaults are returned.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		return cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects parameter combinations the segmenters cannot run with.
func (c *Config) Validate() error {
	if c.Segmentation.CellMaxArea <= 0 {
		return fmt.Errorf("cellMaxArea must be positive, got %f", c.Segmentation.CellMaxArea)
	}

	if c.Segmentation.CellMinCircularity < 0 || c.Segmentation.CellMinCircularity > 1 {
		return fmt.Errorf("cellMinCircularity must be in [0,1], got %f", c.Segmentation.CellMinCircularity)
	}

	if c.Segmentation.SlideThreshold < 0 || c.Segmentation.SlideThreshold > 255 {
		return fmt.Errorf("slideThreshold must be in [0,255], got %d", c.Segmentation.SlideThreshold)
	}

	if len(c.Segmentation.SlideMorphIterations) != 3 {
		return fmt.Errorf("slideMorphIterations must have 3 entries, got %d",
			len(c.Segmentation.SlideMorphIterations))
	}
	for i, n := range c.Segmentation.SlideMorphIterations {
		if n < 0 {
			return fmt.Errorf("slideMorphIterations[%d] must be non-negative, got %d", i, n)
		}
	}

	if m := c.Stain.Matrix; len(m) != 0 {
		if len(m) != 3 {
			return fmt.Errorf("stain matrix must have 3 rows, got %d", len(m))
		}
		for i, row := range m {
			if len(row) != 3 {
				return fmt.Errorf("stain matrix row %d must have 3 entries, got %d", i, len(row))
			}
		}
	}

	if c.Runtime.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Runtime.Workers)
	}

	return nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
