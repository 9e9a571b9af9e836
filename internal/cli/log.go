package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taptrack/taptrack/internal/eventlog"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit   int
	Summary bool
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent attendance events",
		Long: `Show the most recent entries from the local event log, newest
first, or a per-outcome summary.

Examples:
  taptrack log --data ./device
  taptrack log --data ./device --limit 50
  taptrack log --data ./device --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum entries to show")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "show per-outcome counts instead of entries")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	events, err := eventlog.Open(cfg.EventLogFile)
	if err != nil {
		return err
	}
	defer events.Close()

	w := cmd.OutOrStdout()

	if opts.Summary {
		counts, err := events.CountByOutcome(ctx)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Fprintln(w, "Event log is empty.")
			return nil
		}
		outcomes := make([]string, 0, len(counts))
		for o := range counts {
			outcomes = append(outcomes, o)
		}
		sort.Strings(outcomes)
		for _, o := range outcomes {
			fmt.Fprintf(w, "  %-16s %d\n", o, counts[o])
		}
		return nil
	}

	entries, err := events.ListRecent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "Event log is empty.")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(w, "  %s  %-16s %s", e.Timestamp, e.Outcome, e.Identifier)
		if e.Name != "" {
			fmt.Fprintf(w, " (%s)", e.Name)
		}
		fmt.Fprintln(w)
	}
	return nil
}
