/*
Package config defines the engine's configuration value object.

PURPOSE:
  One explicit Config value, loaded once and passed into constructors.
  No process-wide mutable state: components never reach for a global.

USAGE:
  cfg := config.Default()
  // or
  cfg, err := config.Load("fintrack.yaml")

FILE FORMAT (YAML):
  database:
    path: ./data/fintrack.db
  archive:
    dir: ./data/cold
    min_age_days: 180
  lineage:
    cc_payment_window_days: 2
    refund_window_days: 30
    similarity_threshold: 0.7
  logging:
    level: info
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Lineage  LineageConfig  `yaml:"lineage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" for ephemeral runs.
	Path string `yaml:"path"`
}

type ArchiveConfig struct {
	// Dir is the cold-storage directory for monthly CSV files + manifest.
	Dir string `yaml:"dir"`
	// MinAgeDays is the default archival age when no explicit cutoff is given.
	MinAgeDays int `yaml:"min_age_days"`
}

type LineageConfig struct {
	CCPaymentWindowDays int     `yaml:"cc_payment_window_days"`
	RefundWindowDays    int     `yaml:"refund_window_days"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type LoggingConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "./data/fintrack.db"},
		Archive:  ArchiveConfig{Dir: "./data/cold", MinAgeDays: 180},
		Lineage: LineageConfig{
			CCPaymentWindowDays: 2,
			RefundWindowDays:    30,
			SimilarityThreshold: 0.7,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults: absent keys keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
