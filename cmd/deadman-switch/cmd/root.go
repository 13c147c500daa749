package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/oshokin/dead-man-switch/internal/config"
	"github.com/oshokin/dead-man-switch/internal/service/switcher"
	"github.com/oshokin/dead-man-switch/internal/version"
)

var (
	// configPath to the configuration file (YAML or TOML).
	configPath string
	// grpcAddress overrides the configured gRPC listen address.
	grpcAddress string
	// webAddress overrides the configured web listen address.
	webAddress string
	// headless disables the terminal front-end.
	headless bool
	// replace terminates an already running switch.
	replace bool
	// skipSMTPCheck disables the startup SMTP check.
	skipSMTPCheck bool

	// rootCmd represents the base command for running the switch.
	rootCmd = &cobra.Command{
		Use:   "deadman-switch",
		Short: "Run the dead man's switch.",
		Long: `Starts the dead man's switch and waits for check-ins.

If nobody checks in before the warning timer runs out, a warning email is sent
to your own address. If the dead man timer then runs out as well, the final
email with its attachments is sent to the recipient and the switch stays
triggered until the process exits.

Check in from the terminal (press c), from the web dashboard, or remotely with
deadman-checkin. Nothing is persisted: restarting the process re-arms the switch.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return switcher.Run(ctx, &switcher.Options{
				ConfigPath:    configPath,
				GRPCAddress:   grpcAddress,
				WebAddress:    webAddress,
				Interactive:   !headless && readline.DefaultIsTerminal(),
				Replace:       replace,
				SkipSMTPCheck: skipSMTPCheck,
			})
		},
	}
)

// Execute runs the deadman-switch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initCmd, journalCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file (.yaml or .toml)")

	rootCmd.Flags().StringVar(&grpcAddress, "grpc-address", "", "override the gRPC listen address")
	rootCmd.Flags().StringVar(&webAddress, "web-address", "", "override the web listen address")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run without the terminal front-end")
	rootCmd.Flags().BoolVar(&replace, "replace", false, "terminate an already running switch instead of refusing to start")
	rootCmd.Flags().BoolVar(&skipSMTPCheck, "skip-smtp-check", false, "do not check the SMTP server on startup")
}
