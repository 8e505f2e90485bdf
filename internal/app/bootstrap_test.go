package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopegate/internal/config"
	"scopegate/internal/userstate"
)

func testSettings() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.OAuth.ClientID = "app"
	cfg.OAuth.ClientSecret = "secret"
	cfg.OAuth.AuthorizeURL = "https://provider.test/oauth/authorize"
	cfg.OAuth.TokenURL = "https://api.test/v1pre3/oauthv2/token"
	cfg.OAuth.RedirectURI = "http://localhost:8080/trigger"
	cfg.API.BaseURL = "https://api.test/"
	return &cfg
}

func newTestApplication(t *testing.T, settings *config.Config) *Application {
	t.Helper()
	app, err := NewApplication(&Config{Settings: settings, LogOutput: io.Discard})
	require.NoError(t, err)
	return app
}

func TestNewApplication_MemoryBackend(t *testing.T) {
	app := newTestApplication(t, testSettings())
	t.Cleanup(func() { _ = app.Services().Close() })

	s := app.Services()
	assert.Equal(t, config.BackendMemory, s.Backend)
	assert.IsType(t, &userstate.MemoryStore{}, s.Store)
	assert.NotNil(t, s.Machine)
	assert.NotNil(t, s.Server)
	assert.Equal(t, "http://localhost:8080/trigger", s.Broker.RedirectURI())
	assert.Equal(t, "https://api.test", s.API.BaseURL())
}

func TestNewApplication_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	settings := testSettings()
	settings.Store.Backend = config.BackendRedis
	settings.Store.Redis.URL = "redis://" + mr.Addr()
	settings.Store.PendingTTL = time.Hour

	app := newTestApplication(t, settings)
	t.Cleanup(func() { _ = app.Services().Close() })

	assert.Equal(t, config.BackendRedis, app.Services().Backend)
	assert.IsType(t, &userstate.RedisStore{}, app.Services().Store)
}

func TestNewApplication_InvalidSettings(t *testing.T) {
	settings := testSettings()
	settings.OAuth.ClientID = ""

	_, err := NewApplication(&Config{Settings: settings, LogOutput: io.Discard})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestNewApplication_LoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scopegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: "127.0.0.1:0"
oauth:
  clientID: app
  clientSecret: secret
  issuer: https://provider.test
api:
  baseURL: https://api.test/
logging:
  level: warn
  format: json
`), 0o600))

	cfg := NewConfig(false, path)
	cfg.EnvFile = filepath.Join(dir, "absent.env")
	cfg.LogOutput = io.Discard

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Services().Close() })

	require.NotNil(t, cfg.Settings)
	assert.Equal(t, "https://provider.test", cfg.Settings.OAuth.Issuer)
	assert.Equal(t, "warn", cfg.Settings.Logging.Level)
}

func TestNewApplication_MissingConfigIsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(true, filepath.Join(dir, "absent.yaml"))
	cfg.EnvFile = filepath.Join(dir, "absent.env")
	cfg.LogOutput = io.Discard

	_, err := NewApplication(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestRun_StopsWhenContextIsCancelled(t *testing.T) {
	app := newTestApplication(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
