package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/dead-man-switch/internal/config"
	"github.com/oshokin/dead-man-switch/internal/service/watcher"
	"github.com/oshokin/dead-man-switch/internal/version"
)

var (
	// configPath stores the path to the configuration file.
	configPath string
	// interval between status polls.
	interval time.Duration
	// timeout is the per-RPC timeout.
	timeout time.Duration
	// once prints the status a single time.
	once bool

	// rootCmd represents the base command for watching the switch.
	rootCmd = &cobra.Command{
		Use:   "deadman-status [server-address]",
		Short: "Show the status of a running dead man's switch.",
		Long: `Polls a running dead man's switch over gRPC and logs every phase change.

Exits with an error as soon as the switch triggers, so it can drive alerts.
With --once the current status is printed and the command exits.
Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use server address argument if provided, otherwise rely on config.
			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  interval,
				Timeout:       timeout,
				Once:          once,
			})
		},
	}
)

// Execute runs the deadman-status CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", watcher.DefaultPollInterval, "polling interval")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", config.DefaultTimeout, "per-request timeout")
	rootCmd.Flags().BoolVar(&once, "once", false, "print the status once and exit")
}
