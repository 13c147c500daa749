package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/dead-man-switch/internal/config"
	"github.com/oshokin/dead-man-switch/internal/service/client"
	"github.com/oshokin/dead-man-switch/internal/version"
)

var (
	// configPath stores the configuration file path.
	configPath string
	// source overrides the detected check-in source.
	source string
	// timeout is the per-RPC timeout.
	timeout time.Duration
	// retryInterval is the delay between attempts.
	retryInterval time.Duration
	// once disables retries.
	once bool

	// rootCmd represents the base command for a remote check-in.
	rootCmd = &cobra.Command{
		Use:   "deadman-checkin [server-address]",
		Short: "Check in with a running dead man's switch.",
		Long: `Resets the countdown of a running dead man's switch over gRPC.

Retries every few seconds until the switch confirms the check-in, unless --once
is given. Fails immediately when the switch has already triggered.
Server address can be provided as argument or loaded from configuration file.

Run it from cron, a login script or a phone shortcut to prove you are alive.`,
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

			return client.Run(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Source:        source,
				Timeout:       timeout,
				RetryInterval: retryInterval,
				Once:          once,
			})
		},
	}
)

// Execute runs the deadman-checkin CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&source, "source", "s", "", "check-in source, defaults to checkin:user@host")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", config.DefaultTimeout, "per-request timeout")
	rootCmd.Flags().DurationVar(&retryInterval, "retry-interval", client.DefaultRetryInterval, "delay between attempts")
	rootCmd.Flags().BoolVar(&once, "once", false, "try only once")
}
