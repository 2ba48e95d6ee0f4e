// Package config provides configuration loading and management for emsegment.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"emsegment/pkg/em"
	"emsegment/pkg/priors"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Fitting parameters
	Fitting struct {
		// NumClasses is the number of intensity classes to fit
		NumClasses int `yaml:"numClasses"`

		// InitialMeans seeds the class means when no priors are loaded
		InitialMeans []float64 `yaml:"initialMeans"`

		// InitialStds seeds the class standard deviations when no priors are loaded
		InitialStds []float64 `yaml:"initialStds"`

		// ConvergenceRatio is the threshold on the fractional change of each mean
		ConvergenceRatio float64 `yaml:"convergenceRatio"`

		// MaxIterations bounds the number of iterations before giving up
		MaxIterations int `yaml:"maxIterations"`

		// DegeneratePolicy is "fail" or "pointmass"
		DegeneratePolicy string `yaml:"degeneratePolicy"`

		// ReturnRefined returns the last re-estimated parameters on convergence
		ReturnRefined bool `yaml:"returnRefined"`
	} `yaml:"fitting"`

	// Prior loading
	Priors struct {
		// Loader is "none", "stub" or "samples"
		Loader string `yaml:"loader"`

		// Paths are handed to the loader, one per class for "samples"
		Paths []string `yaml:"paths"`
	} `yaml:"priors"`

	// Output parameters
	Output struct {
		// LabelMap is where the segmentation is written as PNG; empty to skip
		LabelMap string `yaml:"labelMap"`

		// ConvergenceChart is where the per-iteration mean trace is written; empty to skip
		ConvergenceChart string `yaml:"convergenceChart"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Fitting.NumClasses = 4
	cfg.Fitting.InitialMeans = []float64{50, 100, 150, 200}
	cfg.Fitting.InitialStds = []float64{10, 10, 10, 10}
	cfg.Fitting.ConvergenceRatio = 0.001
	cfg.Fitting.MaxIterations = 100
	cfg.Fitting.DegeneratePolicy = "fail"
	cfg.Fitting.ReturnRefined = false

	cfg.Priors.Loader = "none"

	cfg.Output.Verbose = false

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
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

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the fitting section for values the engine would reject
func (c *Config) Validate() error {
	f := c.Fitting
	if f.NumClasses <= 0 {
		return fmt.Errorf("numClasses must be positive, got %d", f.NumClasses)
	}
	if c.Priors.Loader == "" || c.Priors.Loader == "none" {
		if len(f.InitialMeans) != f.NumClasses || len(f.InitialStds) != f.NumClasses {
			return fmt.Errorf("numClasses is %d but %d initialMeans and %d initialStds are configured",
				f.NumClasses, len(f.InitialMeans), len(f.InitialStds))
		}
	}
	if f.ConvergenceRatio <= 0 {
		return fmt.Errorf("convergenceRatio must be positive, got %v", f.ConvergenceRatio)
	}
	if f.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be positive, got %d", f.MaxIterations)
	}
	if _, err := em.ParseDegeneratePolicy(f.DegeneratePolicy); err != nil {
		return err
	}
	if _, err := priors.New(c.Priors.Loader); err != nil {
		return err
	}
	return nil
}

// Params converts the configuration into engine parameters
func (c *Config) Params() (*em.Params, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	policy, _ := em.ParseDegeneratePolicy(c.Fitting.DegeneratePolicy)
	loader, _ := priors.New(c.Priors.Loader)

	params := em.DefaultParams()
	params.NumClasses = c.Fitting.NumClasses
	params.InitialMeans = append([]float64(nil), c.Fitting.InitialMeans...)
	params.InitialStds = append([]float64(nil), c.Fitting.InitialStds...)
	params.ConvergenceRatio = c.Fitting.ConvergenceRatio
	params.MaxIterations = c.Fitting.MaxIterations
	params.DegeneratePolicy = policy
	params.ReturnRefined = c.Fitting.ReturnRefined
	params.Priors = loader
	params.PriorPaths = append([]string(nil), c.Priors.Paths...)

	return params, nil
}
