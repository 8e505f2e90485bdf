package app

import (
	"context"
	"os/signal"
	"syscall"

	"scopegate/pkg/logging"
)

// runServer serves HTTP until ctx is done or the process receives SIGINT or
// SIGTERM. The store is closed after the listener has drained.
func runServer(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if err := services.Close(); err != nil {
			logging.Error("Bootstrap", err, "Failed to close services")
		}
	}()

	logging.Info("Bootstrap", "Starting scopegate (store=%s)", services.Backend)
	if err := services.Server.Serve(ctx); err != nil {
		logging.Error("Bootstrap", err, "Server stopped with an error")
		return err
	}

	logging.Info("Bootstrap", "Shutdown complete")
	return nil
}
