package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/headwind-sh/headwind/internal/app"
)

var (
	serveDebug       bool
	serveConfigPath  string
	serveWatchConfig bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controllers, the registry poller and the webhook server",
		Long: `Starts headwind in the foreground.

The command runs one controller per enabled workload kind plus the
UpdateRequest controller, the registry webhook receiver and, when enabled, the
registry poller. It stops on SIGINT or SIGTERM.

Configuration:
  headwind reads config.yaml from --config-path (default /etc/headwind).
  Environment variables such as HEADWIND_POLLING_ENABLED and
  HEADWIND_WEBHOOK_URL override the file. With --watch-config the log level
  and polling interval are reloaded when the file changes.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory containing config.yaml")
	cmd.Flags().BoolVar(&serveWatchConfig, "watch-config", true, "Reload the configuration file when it changes")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath, serveWatchConfig)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
