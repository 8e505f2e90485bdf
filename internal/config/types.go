package config

import "time"

// Config is the top-level configuration structure for scopegate.
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	OAuth   OAuthConfig   `yaml:"oauth" envPrefix:"OAUTH_"`
	API     APIConfig     `yaml:"api" envPrefix:"API_"`
	Store   StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Listen            string        `yaml:"listen" env:"LISTEN"`                        // Address to bind (default: :8080)
	PublicURL         string        `yaml:"publicURL" env:"PUBLIC_URL"`                 // Externally visible base URL
	RequestTimeout    time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`       // Per-request deadline
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" env:"READ_HEADER_TIMEOUT"` // http.Server.ReadHeaderTimeout
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`     // Grace period for in-flight requests
}

// OAuthConfig defines the provider registration.
type OAuthConfig struct {
	ClientID     string `yaml:"clientID" env:"CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret" env:"CLIENT_SECRET"`

	// AuthorizeURL and TokenURL take precedence over Issuer discovery.
	AuthorizeURL string `yaml:"authorizeURL" env:"AUTHORIZE_URL"`
	TokenURL     string `yaml:"tokenURL" env:"TOKEN_URL"`
	Issuer       string `yaml:"issuer" env:"ISSUER"`

	RedirectURI  string `yaml:"redirectURI" env:"REDIRECT_URI"`
	AuthStyle    string `yaml:"authStyle" env:"AUTH_STYLE"` // params, header or auto
	DefaultScope string `yaml:"defaultScope" env:"DEFAULT_SCOPE"`
}

// APIConfig defines the resource API.
type APIConfig struct {
	BaseURL string        `yaml:"baseURL" env:"BASE_URL"`
	Version string        `yaml:"version" env:"VERSION"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// StoreConfig selects the user state backend.
type StoreConfig struct {
	Backend    string        `yaml:"backend" env:"BACKEND"`         // memory or redis
	PendingTTL time.Duration `yaml:"pendingTTL" env:"PENDING_TTL"` // 0 keeps pending entries until taken
	Redis      RedisConfig   `yaml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig is used when Store.Backend is redis.
type RedisConfig struct {
	URL       string `yaml:"url" env:"URL"`
	KeyPrefix string `yaml:"keyPrefix" env:"KEY_PREFIX"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)
