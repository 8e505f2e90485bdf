package app

import (
	"context"
	"fmt"
	"net/http"

	"scopegate/internal/config"
	"scopegate/internal/flow"
	"scopegate/internal/oauth"
	"scopegate/internal/resourceapi"
	"scopegate/internal/server"
	"scopegate/internal/userstate"
	"scopegate/internal/view"
	"scopegate/pkg/logging"
)

// Services holds every component built at startup.
//
// Initialization order follows the dependencies:
//  1. The user state store (memory or Redis)
//  2. The OAuth token broker and the resource API client
//  3. The authorization state machine
//  4. The HTTP server and its page renderer
type Services struct {
	// Backend names the store implementation in use.
	Backend string

	Store   userstate.Store
	Broker  *oauth.Client
	API     *resourceapi.Client
	Machine *flow.Machine
	Server  *server.HTTPServer
}

// InitializeServices builds every component from validated settings. On failure
// anything already opened is closed again.
func InitializeServices(ctx context.Context, settings *config.Config) (*Services, error) {
	store, err := newStore(ctx, settings.Store)
	if err != nil {
		return nil, err
	}

	services, err := buildServices(settings, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	services.Backend = settings.Store.Backend
	return services, nil
}

func buildServices(settings *config.Config, store userstate.Store) (*Services, error) {
	broker, err := oauth.NewClient(oauth.ClientConfig{
		ClientID:     settings.OAuth.ClientID,
		ClientSecret: settings.OAuth.ClientSecret,
		RedirectURI:  settings.OAuth.RedirectURI,
		AuthorizeURL: settings.OAuth.AuthorizeURL,
		TokenURL:     settings.OAuth.TokenURL,
		Issuer:       settings.OAuth.Issuer,
		AuthStyle:    settings.OAuth.AuthStyle,
		HTTPClient:   &http.Client{Timeout: settings.API.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth client: %w", err)
	}

	api, err := resourceapi.NewClient(resourceapi.Config{
		BaseURL:      settings.API.BaseURL,
		Version:      settings.API.Version,
		ClientID:     settings.OAuth.ClientID,
		ClientSecret: settings.OAuth.ClientSecret,
		HTTPClient:   &http.Client{Timeout: settings.API.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resource API client: %w", err)
	}

	machine := flow.NewMachine(store, broker, api, flow.Options{DefaultScope: settings.OAuth.DefaultScope})

	views, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	srv := server.New(server.Config{
		Listen:            settings.Server.Listen,
		RequestTimeout:    settings.Server.RequestTimeout,
		ReadHeaderTimeout: settings.Server.ReadHeaderTimeout,
		ShutdownTimeout:   settings.Server.ShutdownTimeout,
	}, machine, views)

	return &Services{
		Store:   store,
		Broker:  broker,
		API:     api,
		Machine: machine,
		Server:  srv,
	}, nil
}

func newStore(ctx context.Context, cfg config.StoreConfig) (userstate.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client, err := userstate.ConnectRedis(ctx, userstate.RedisConfig{URL: cfg.Redis.URL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logging.Info("Bootstrap", "Using Redis user state store")
		return userstate.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.PendingTTL), nil
	default:
		logging.Info("Bootstrap", "Using in-memory user state store")
		return userstate.NewMemoryStore(cfg.PendingTTL), nil
	}
}

// Close releases the store.
func (s *Services) Close() error {
	return s.Store.Close()
}
