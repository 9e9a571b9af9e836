package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taptrack/taptrack/internal/config"
	"github.com/taptrack/taptrack/internal/controller"
	"github.com/taptrack/taptrack/internal/eventlog"
	"github.com/taptrack/taptrack/internal/feedback"
	"github.com/taptrack/taptrack/internal/uplink"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Offline bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop with simulated hardware",
		Long: `Run the attendance control loop. Card taps are simulated by
typing an identifier on stdin; the remote store is simulated in memory.

Example:
  taptrack run --data ./device
  taptrack run --data ./device --offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "start the simulated remote store unreachable")

	return cmd
}

func runLoop(opts *RunOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	cache, err := openCache(cfg)
	if err != nil {
		return err
	}
	events, err := eventlog.Open(cfg.EventLogFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := events.Close(); closeErr != nil {
			slog.Error("closing event log", "error", closeErr)
		}
	}()

	remote := uplink.NewMemoryClient(uplink.UUIDv7Generator{})
	remote.SetReady(!opts.Offline)

	indicator := feedback.IndicatorFunc(func(o feedback.Outcome) {
		fmt.Printf("[indicator] %s\n", o)
	})

	reader := NewLineReader(os.Stdin)

	ctrl, err := controller.New(cfg, controller.Deps{
		Reader:   reader,
		Clock:    NewSystemClock(),
		Remote:   remote,
		Queue:    q,
		Cache:    cache,
		Dispatch: feedback.NewDispatcher(indicator),
		EventLog: events,
		States:   config.NewStateStore(cfg.StateFile),
	})
	if err != nil {
		return err
	}
	reader.SetOnDetect(ctrl.OnCardDetect)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("control loop starting",
		"mode", string(ctrl.Mode()),
		"queue_file", cfg.QueueFile,
		"online", remote.IsReady())
	fmt.Println("Type a card identifier and press enter to tap. Ctrl-C to stop.")

	if err := ctrl.Run(ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
