package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/dead-man-switch/internal/journal"
	"github.com/oshokin/dead-man-switch/internal/service/switcher"
)

var (
	// journalFile overrides the configured journal path.
	journalFile string
	// journalKind keeps only events of this kind.
	journalKind string
	// journalSince keeps only events newer than this age.
	journalSince time.Duration

	journalCmd = &cobra.Command{
		Use:   "journal",
		Short: "Print the switch journal.",
		Long: `Prints the check-ins, expiries and email deliveries recorded in the journal
file configured by journal_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter journal.Filter

			if journalKind != "" {
				kind, err := journal.ParseKind(journalKind)
				if err != nil {
					return err
				}

				filter.Kind = kind
			}

			if journalSince > 0 {
				filter.Since = time.Now().Add(-journalSince)
			}

			return switcher.PrintJournal(cmd.OutOrStdout(), &switcher.JournalOptions{
				ConfigPath: configPath,
				Path:       journalFile,
				Filter:     filter,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	journalCmd.Flags().StringVarP(&journalFile, "file", "f", "", "journal file, defaults to journal_file from the configuration")
	journalCmd.Flags().StringVarP(&journalKind, "kind", "k", "", "only show events of this kind (check_in, expiry, delivery)")
	journalCmd.Flags().DurationVar(&journalSince, "since", 0, "only show events newer than this age (e.g. 24h)")
}
