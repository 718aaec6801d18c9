package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the
// specified type. T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Load reads and validates a service configuration file, filling in the
// default runtime directory when the file leaves it unset.
func Load(path string) (*Config, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Config](path)
	if err != nil {
		return nil, err
	}

	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = DefaultRuntimeDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("service configuration validation failed: %w", err)
	}

	logger.Info().Int("service_count", len(cfg.Services)).Msg("loaded service configuration")

	return cfg, nil
}
