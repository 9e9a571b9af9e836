package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewQueueCommand creates the queue command and its subcommands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the offline queue",
	}

	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueueClearCommand(rootOpts))

	return cmd
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued attendance records",
		Long: `List every record waiting in the offline queue, oldest first.

Examples:
  taptrack queue list --data ./device`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			records := q.Records()
			if len(records) == 0 {
				fmt.Fprintln(w, "Queue is empty.")
				return nil
			}

			stats := q.Stats()
			fmt.Fprintf(w, "Queue: %d/%d records (%d%% full)\n",
				stats.Total, cfg.MaxQueueSize, q.CapacityPercent())
			if stats.Stalled > 0 {
				fmt.Fprintf(w, "Stalled (repeatedly retried): %d\n", stats.Stalled)
			}
			fmt.Fprintln(w)

			for i, rec := range records {
				fmt.Fprintf(w, "  [%d] %s  %s  %s", i, rec.Identifier, rec.Timestamp, rec.Attendance)
				if rec.RetryCount > 0 {
					fmt.Fprintf(w, "  retries=%d", rec.RetryCount)
				}
				if rec.CorrelationID != "" {
					fmt.Fprintf(w, "  awaiting=%s", rec.CorrelationID)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func newQueueClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard all queued records",
		Long: `Discard every record in the offline queue. Cleared records are
gone; they will never reach the remote store.

Examples:
  taptrack queue clear --data ./device`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}

			n := q.Len()
			if err := q.Clear(); err != nil {
				return fmt.Errorf("clear queue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d record(s).\n", n)
			return nil
		},
	}
}
