package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taptrack/taptrack/internal/config"
)

// NewModeCommand creates the mode command and its subcommands.
func NewModeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or set the connectivity mode",
		Long: `Show or set the operator's connectivity preference. "auto" lets
remote readiness decide; "force_online" and "force_offline" override it.
The preference is persisted and survives restarts.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the persisted mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			state, err := config.NewStateStore(cfg.StateFile).Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(state.Mode))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <auto|force_online|force_offline>",
		Short: "Set and persist the mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := config.ParseMode(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			store := config.NewStateStore(cfg.StateFile)
			state, err := store.Load()
			if err != nil {
				return err
			}
			state.Mode = mode
			if err := store.Save(state); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s.\n", string(mode))
			return nil
		},
	})

	return cmd
}
