package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scopegate/internal/app"
	"scopegate/internal/config"
)

// serveDebug enables verbose logging regardless of the configured level.
var serveDebug bool

// serveConfigPath is the YAML configuration file.
var serveConfigPath string

// serveEnvFile is the optional dotenv file loaded before environment overrides.
var serveEnvFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scopegate HTTP server",
	Long: `Starts the scopegate HTTP server.

Configuration is layered: built-in defaults, then the YAML file given with
--config, then the dotenv file, then environment variables prefixed with
SCOPEGATE_ (for example SCOPEGATE_OAUTH_CLIENT_SECRET). A missing YAML file
is not an error as long as the environment supplies the required settings.

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath)
	cfg.EnvFile = serveEnvFile

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigFile, "Path to the YAML configuration file")
	serveCmd.Flags().StringVar(&serveEnvFile, "env-file", config.DefaultEnvFile, "Path to an optional dotenv file")
}
