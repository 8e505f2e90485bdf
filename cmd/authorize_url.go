package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scopegate/internal/config"
	"scopegate/internal/oauth"
)

// checkContextKey stands in for a registry key in URLs built by authorize-url.
// A callback carrying it finds nothing pending and ends as an expired flow.
const checkContextKey = "check"

// newAuthorizeURLCmd creates the command that prints an authorization URL built
// from the configuration, for checking a provider registration by hand.
func newAuthorizeURLCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		userID     string
		scope      string
	)

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print a sample provider authorization URL",
		Long: `Builds the authorization URL scopegate would redirect a user to, using the
configured client id, redirect URI and provider endpoints. Open it in a browser
to check the provider registration. When --scope is empty the configured
default scope is requested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(config.LoadOptions{ConfigFile: configPath, EnvFile: envFile})
			if err != nil {
				return err
			}

			broker, err := oauth.NewClient(oauth.ClientConfig{
				ClientID:     settings.OAuth.ClientID,
				ClientSecret: settings.OAuth.ClientSecret,
				RedirectURI:  settings.OAuth.RedirectURI,
				AuthorizeURL: settings.OAuth.AuthorizeURL,
				TokenURL:     settings.OAuth.TokenURL,
				Issuer:       settings.OAuth.Issuer,
				AuthStyle:    settings.OAuth.AuthStyle,
			})
			if err != nil {
				return err
			}

			state, err := oauth.EncodeState(userID, checkContextKey, "")
			if err != nil {
				return err
			}
			if scope == "" {
				scope = settings.OAuth.DefaultScope
			}

			url, err := broker.AuthorizeURL(cmd.Context(), state, scope)
			if err != nil {
				return fmt.Errorf("failed to build authorization URL: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigFile, "Path to the YAML configuration file")
	cmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Path to an optional dotenv file")
	cmd.Flags().StringVar(&userID, "user", "", "User id to place in the state parameter")
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to request (default: oauth.defaultScope)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
