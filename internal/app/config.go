package app

import (
	"io"

	"scopegate/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is the YAML file to load. Empty means config.DefaultConfigFile.
	ConfigPath string

	// EnvFile is the dotenv file to load. Empty means config.DefaultEnvFile.
	EnvFile string

	// LogOutput receives log lines. Nil means stderr.
	LogOutput io.Writer

	// Settings is the loaded configuration. When set before NewApplication,
	// loading is skipped.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
