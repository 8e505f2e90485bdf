// Package config loads the scopegate configuration.
//
// Configuration is assembled in layers, each overriding the previous one:
//
//  1. DefaultConfig supplies the built-in defaults.
//  2. A YAML file (default ./scopegate.yaml). A missing file is not an error.
//  3. An optional .env file, loaded into the process environment. Variables
//     already set in the environment are not overwritten.
//  4. Environment variables prefixed with SCOPEGATE_, for example
//     SCOPEGATE_OAUTH_CLIENT_SECRET or SCOPEGATE_STORE_REDIS_URL.
//
// # Configuration File
//
//	server:
//	  listen: ":8080"
//	  publicURL: "https://scopegate.example.com"
//	  requestTimeout: 60s
//	oauth:
//	  clientID: "my-app"
//	  clientSecret: "..."
//	  authorizeURL: "https://provider.example.com/oauth/authorize"
//	  tokenURL: "https://api.example.com/v1pre3/oauthv2/token"
//	  defaultScope: "browse global"
//	api:
//	  baseURL: "https://api.example.com/"
//	  version: "v1pre3"
//	store:
//	  backend: redis
//	  pendingTTL: 1h
//	  redis:
//	    url: "redis://localhost:6379/0"
//	logging:
//	  level: info
//	  format: json
//
// When oauth.redirectURI is empty it defaults to server.publicURL followed by
// /trigger, the single entry point that also receives the provider callback.
//
// Load validates the result and reports every problem at once as a
// ValidationErrors wrapped in ErrInvalidConfig.
package config
