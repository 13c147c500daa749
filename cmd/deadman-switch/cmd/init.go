package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/dead-man-switch/internal/service/switcher"
)

var (
	// force overwrites an existing configuration file.
	force bool

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file.",
		Long: `Writes a configuration file with default values to the --config path.

The web password is generated randomly unless DEADMAN_WEB_PASSWORD or
WEB_PASSWORD is set. Edit the SMTP settings, addresses and messages before
starting the switch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := switcher.WriteDefaultConfig(configPath, force)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\nWeb password: %s\n",
				configPath, cfg.WebPassword)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
}
