package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete digest artifacts older than the retention window",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			removed, err := appInstance.Prune(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune digests: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, path := range removed {
				fmt.Fprintln(out, "removed", path)
			}
			fmt.Fprintf(out, "pruned %d files\n", len(removed))
			return nil
		}),
	}
}
