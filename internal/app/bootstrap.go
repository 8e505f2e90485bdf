package app

import (
	"context"
	"fmt"

	"scopegate/internal/config"
	"scopegate/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs scopegate.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and builds every service.
// The returned application owns the store connection; Run releases it.
func NewApplication(cfg *Config) (*Application, error) {
	// Configure logging based on debug flag until the configured level is known
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.Init(appLogLevel, logging.FormatText, cfg.LogOutput)

	if cfg.Settings == nil {
		settings, err := config.Load(config.LoadOptions{ConfigFile: cfg.ConfigPath, EnvFile: cfg.EnvFile})
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load scopegate configuration")
			return nil, fmt.Errorf("failed to load scopegate configuration: %w", err)
		}
		cfg.Settings = &settings
	} else if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	initLogging(cfg)

	services, err := InitializeServices(context.Background(), cfg.Settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config) {
	level, _ := logging.ParseLevel(cfg.Settings.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, cfg.Settings.Logging.Format, cfg.LogOutput)
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves until ctx is cancelled or a termination signal arrives, then shuts
// down gracefully and closes the store.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}
