// Package app bootstraps and runs scopegate.
//
// Startup happens in two phases:
//
//  1. Bootstrap: NewApplication initializes logging, loads the layered
//     configuration (see package config) and builds the services. The user
//     state store is either in memory or backed by Redis; the Redis connection
//     is verified before anything else starts.
//  2. Execution: Run serves HTTP until the context is cancelled or the process
//     receives SIGINT or SIGTERM, then drains in-flight requests and closes the
//     store.
//
// Example:
//
//	cfg := app.NewConfig(false, "scopegate.yaml")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
package app
