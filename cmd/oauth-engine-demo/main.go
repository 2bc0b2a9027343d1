// Command oauth-engine-demo runs a complete authorization code exchange
// against the in-memory primitives and prints what each flow answered.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "oauth-engine-demo",
		Short:         "Run an OAuth 2.0 authorization code exchange in process",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # S256 PKCE through the actor bridge
  oauth-engine-demo --bridged

  # Optional PKCE with a plain challenge, Prometheus metrics dumped at the end
  OAUTH_ENGINE_PKCE=optional oauth-engine-demo --pkce-method plain --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDemoConfig(v)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.logLevel}))
			return runDemo(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("pkce", pkceRequired, "PKCE mode: required, optional or off")
	flags.String("pkce-method", "S256", "code_challenge_method sent by the demo client (S256 or plain)")
	flags.String("scope", "read", "scope requested by the demo client")
	flags.Bool("bridged", false, "run the primitives behind actor mailboxes")
	flags.Bool("metrics", false, "print Prometheus metrics after the exchange")
	flags.Bool("audit", true, "emit security_audit log events")
	flags.Int64("code-ttl", 600, "authorization code lifetime in seconds")
	flags.Int64("access-token-ttl", 3600, "access token lifetime in seconds")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	v.SetEnvPrefix("OAUTH_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the demo version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "oauth-engine-demo %s\n", version)
			return err
		},
	}
}
