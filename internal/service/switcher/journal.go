package switcher

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/oshokin/dead-man-switch/internal/config"
	"github.com/oshokin/dead-man-switch/internal/journal"
	"github.com/oshokin/dead-man-switch/internal/logger"
	"github.com/oshokin/dead-man-switch/internal/service/engine"
	"github.com/oshokin/dead-man-switch/internal/service/notifier"
)

// JournalOptions selects what PrintJournal shows.
type JournalOptions struct {
	// ConfigPath is used to find the journal file when Path is empty.
	ConfigPath string
	// Path overrides the configured journal file.
	Path string
	// Filter selects the printed events.
	Filter journal.Filter
}

// recordTransition journals a committed engine transition.
func (s *Switch) recordTransition(ctx context.Context, t engine.Transition) {
	event := journal.Event{
		Timestamp:  t.At,
		Kind:       journal.KindCheckIn,
		Phase:      t.State.Phase.String(),
		Generation: t.State.Generation,
		Source:     t.Source,
	}

	if t.Job != nil {
		event.Kind = journal.KindExpiry
		event.JobID = t.Job.ID
		event.JobKind = t.Job.Kind.String()
	}

	s.record(ctx, event)
}

// recordOutcome journals the result of an escalation job.
func (s *Switch) recordOutcome(outcome notifier.Outcome) {
	event := journal.Event{
		Timestamp:  outcome.At,
		Kind:       journal.KindDelivery,
		Generation: outcome.Job.Generation,
		JobID:      outcome.Job.ID,
		JobKind:    outcome.Job.Kind.String(),
		Attempts:   outcome.Job.Attempts,
	}

	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}

	s.record(context.Background(), event)
}

func (s *Switch) record(ctx context.Context, event journal.Event) {
	if s.journal == nil {
		return
	}

	if err := s.journal.Record(event); err != nil {
		logger.ErrorKV(ctx, "Failed to record journal event", "kind", event.Kind.String(), "error", err)
	}
}

// PrintJournal writes the selected journal events to w as a table.
func PrintJournal(w io.Writer, opts *JournalOptions) error {
	path := opts.Path
	if path == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		if cfg.JournalFile == "" {
			return fmt.Errorf("%w: journal_file is not set", config.ErrConfig)
		}

		path = cfg.JournalFile
	}

	events, err := journal.ReadAll(path, opts.Filter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "TIME\tEVENT\tPHASE\tGEN\tSOURCE\tJOB\tATTEMPTS\tERROR")

	for _, event := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			event.Timestamp.Local().Format(time.DateTime),
			event.Kind,
			dash(event.Phase),
			event.Generation,
			dash(event.Source),
			dash(jobLabel(event)),
			dash(attempts(event)),
			dash(event.Error))
	}

	return tw.Flush()
}

func jobLabel(event journal.Event) string {
	if event.JobID == "" {
		return ""
	}

	return event.JobKind + " " + event.JobID
}

func attempts(event journal.Event) string {
	if event.Attempts == 0 {
		return ""
	}

	return strconv.Itoa(event.Attempts)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
