package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML (or JSON) configuration document, applies defaults
// and validates it. The returned Config is prepared.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Prepare(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Load loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use
// LoadWithEnvOverrides for that functionality.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention POLYINFER_SECTION_FIELD (e.g., POLYINFER_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Prepare(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric and boolean values are ignored.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("POLYINFER_MODE"); val != "" {
		cfg.Mode = Mode(val)
	}
	if val := os.Getenv("POLYINFER_CONSECUTIVE_SUCCESS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.ConsecutiveSuccess = i
		}
	}
	if val := os.Getenv("POLYINFER_LOGGING"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Logging = b
		}
	}
	if val := os.Getenv("POLYINFER_METRICS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics = b
		}
	}

	// Cache overrides
	if val := os.Getenv("POLYINFER_CACHE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if val := os.Getenv("POLYINFER_CACHE_TTL"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Cache.TTL = i
		}
	}

	// Server overrides
	if val := os.Getenv("POLYINFER_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	// Telemetry overrides
	if val := os.Getenv("POLYINFER_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("POLYINFER_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}
