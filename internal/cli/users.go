package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewUsersCommand creates the users command.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known card identities",
		Long: `List every identity in the local cache, with registration status
and tap statistics.

Examples:
  taptrack users --data ./device`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			cache, err := openCache(cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			ids := cache.Identifiers()
			if len(ids) == 0 {
				fmt.Fprintln(w, "No identities cached.")
				return nil
			}
			sort.Strings(ids)

			fmt.Fprintf(w, "%d identities:\n", len(ids))
			for _, id := range ids {
				entry, _ := cache.Lookup(id)
				status := "unregistered"
				if entry.Registered {
					status = "registered"
				}
				fmt.Fprintf(w, "  %s  %-12s  %s  taps=%d\n", id, status, entry.Name, entry.TapCount)
			}
			return nil
		},
	}
}
