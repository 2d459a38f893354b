// Package config provides configuration loading and management for atlasroi.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Project layout
	Project struct {
		// BaseDir is the project directory holding the ontology files
		BaseDir string `yaml:"baseDir"`

		// DataDir holds one directory per image entry, relative to BaseDir
		DataDir string `yaml:"dataDir"`
	} `yaml:"project"`

	// Import parameters
	Import struct {
		// NamingProperty is the ontology attribute used for region names.
		// Empty selects acronym, then name, then id.
		NamingProperty string `yaml:"namingProperty"`

		// SplitHemispheres divides every region by the Left and Right outlines
		SplitHemispheres bool `yaml:"splitHemispheres"`

		// Overwrite removes a previously imported tree of the same ontology
		Overwrite bool `yaml:"overwrite"`

		// AtlasCoordinates adds atlas space centroid measurements to every region
		AtlasCoordinates bool `yaml:"atlasCoordinates"`

		// CoordinatePrefix prefixes the atlas coordinate measurement names
		CoordinatePrefix string `yaml:"coordinatePrefix"`

		// RootPolicy is "strict" or "lastWins"
		RootPolicy string `yaml:"rootPolicy"`

		// RotationPolicy picks the rotated descriptor layer: "outermost" or "innermost"
		RotationPolicy string `yaml:"rotationPolicy"`
	} `yaml:"import"`

	// Output parameters
	Output struct {
		// StorePath is the SQLite database holding imported hierarchies
		StorePath string `yaml:"storePath"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default project layout
	cfg.Project.BaseDir = "."
	cfg.Project.DataDir = "data"

	// Set default import parameters
	cfg.Import.SplitHemispheres = true
	cfg.Import.Overwrite = true
	cfg.Import.AtlasCoordinates = false
	cfg.Import.CoordinatePrefix = "Atlas"
	cfg.Import.RootPolicy = "strict"
	cfg.Import.RotationPolicy = "outermost"

	// Set default output parameters
	cfg.Output.StorePath = "atlasroi.db"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.Import.RootPolicy {
	case "strict", "lastWins":
	default:
		return fmt.Errorf("invalid import.rootPolicy %q: want strict or lastWins", c.Import.RootPolicy)
	}
	switch c.Import.RotationPolicy {
	case "outermost", "innermost":
	default:
		return fmt.Errorf("invalid import.rotationPolicy %q: want outermost or innermost", c.Import.RotationPolicy)
	}
	if c.Import.AtlasCoordinates && c.Import.CoordinatePrefix == "" {
		return fmt.Errorf("import.coordinatePrefix must not be empty when atlasCoordinates is enabled")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
