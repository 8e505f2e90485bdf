package config

import "time"

const (
	// DefaultConfigFile is read when no --config flag is given.
	DefaultConfigFile = "scopegate.yaml"

	// DefaultEnvFile is the optional dotenv file loaded before environment overrides.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SCOPEGATE_"

	// DefaultScope is requested for every authorization in addition to derived scopes.
	DefaultScope = "browse global"

	// DefaultPendingTTL bounds how long parked contexts and continuations wait. Every
	// rendered action page parks its context, so entries must age out.
	DefaultPendingTTL = 24 * time.Hour

	// CallbackPath is the route that receives both app triggers and provider callbacks.
	CallbackPath = "/trigger"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:            ":8080",
			PublicURL:         "http://localhost:8080",
			RequestTimeout:    60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		OAuth: OAuthConfig{
			AuthStyle:    "params",
			DefaultScope: DefaultScope,
		},
		API: APIConfig{
			Version: "v1pre3",
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend:    BackendMemory,
			PendingTTL: DefaultPendingTTL,
			Redis: RedisConfig{
				KeyPrefix: "scopegate:",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
