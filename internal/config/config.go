// Package config handles configuration loading and validation for the
// toolbox.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete toolbox configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version"`

	// Session configuration for the channel store.
	Session SessionConfig `toml:"session"`

	// Import configuration for vendor file import.
	Import ImportConfig `toml:"import"`

	// Preproc holds modality defaults for preprocessing pipelines.
	Preproc PreprocConfig `toml:"preproc"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging"`
}

// SessionConfig holds channel-store persistence configuration.
type SessionConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `toml:"backend"`
}

// ImportConfig holds vendor import configuration.
type ImportConfig struct {
	// Inbox is a directory watched for new vendor files to
	// auto-import. Empty disables watching.
	Inbox string `toml:"inbox"`

	// DebounceMs is how long a file must be stable before it is
	// imported.
	DebounceMs int `toml:"debounce_ms"`
}

// PreprocConfig holds preprocessing defaults.
type PreprocConfig struct {
	// MainsFrequency is the default line interference frequency in Hz.
	MainsFrequency float64 `toml:"mains_frequency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Load reads the configuration at path, fills defaults and validates.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
