package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"scopegate/pkg/logging"
)

// LoadOptions names the files Load reads. Empty fields fall back to
// DefaultConfigFile and DefaultEnvFile.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// Load assembles the configuration from defaults, the YAML file, the dotenv file
// and the environment, then validates it.
func Load(opts LoadOptions) (Config, error) {
	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile
	}
	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}

	config := DefaultConfig()

	if err := loadFile(opts.ConfigFile, &config); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(opts.EnvFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	} else {
		logging.Info("ConfigLoader", "Loaded environment from %s", opts.EnvFile)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	config.applyDerived()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Info("ConfigLoader", "No config file found at %s, using defaults", path)
			return nil
		}
		return fmt.Errorf("error reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return nil
}

// applyDerived fills values that default from other settings.
func (c *Config) applyDerived() {
	if c.OAuth.RedirectURI == "" && c.Server.PublicURL != "" {
		c.OAuth.RedirectURI = strings.TrimSuffix(c.Server.PublicURL, "/") + CallbackPath
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
}
