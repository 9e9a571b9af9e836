// Package cli implements the taptrack operator command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taptrack/taptrack/internal/config"
	"github.com/taptrack/taptrack/internal/identity"
	"github.com/taptrack/taptrack/internal/queue"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	DataDir    string
	ConfigFile string
}

// NewRootCommand creates the root command for the taptrack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "taptrack",
		Short: "TapTrack attendance controller",
		Long: `TapTrack captures card taps, resolves identities, and records
attendance to a remote store when online or a durable offline queue when
not. This CLI runs the control loop (with simulated hardware) and inspects
the device's durable state.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data", ".", "directory holding durable state files")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config (optional)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewModeCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

// loadConfig reads the YAML config (or defaults) and resolves file paths
// against the data directory.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return cfg, err
	}
	return cfg.Resolve(opts.DataDir), nil
}

// openQueue opens the durable queue named by the config.
func openQueue(cfg config.Config) (*queue.Queue, error) {
	q, err := queue.Open(cfg.QueueFile,
		queue.WithMaxSize(cfg.MaxQueueSize),
		queue.WithWarnThreshold(cfg.QueueWarnThreshold))
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	return q, nil
}

// openCache opens the identity cache named by the config.
func openCache(cfg config.Config) (*identity.Cache, error) {
	return identity.Open(cfg.IdentityFile, slog.Default())
}
