package app

import (
	"github.com/headwind-sh/headwind/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is the directory holding config.yaml.
	ConfigPath string

	// WatchConfig reloads config.yaml when it changes.
	WatchConfig bool

	// Loaded controller configuration, set during bootstrap.
	HeadwindConfig *config.HeadwindConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string, watch bool) *Config {
	if configPath == "" {
		configPath = config.DefaultConfigDir
	}
	return &Config{
		Debug:       debug,
		ConfigPath:  configPath,
		WatchConfig: watch,
	}
}
