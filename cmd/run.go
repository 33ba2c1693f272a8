package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, score and write today's digest",
		Long: `Runs every enabled source for every configured topic, then normalizes,
deduplicates, scores and ranks the entries and writes the digest artifacts.
Failing sources are logged and skipped; the run still succeeds.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			res, err := appInstance.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run digest: %w", err)
			}
			appInstance.Logger().Info("Digest run finished",
				zap.String("run_id", res.Digest.RunID),
				zap.Int("items", res.Digest.Count),
				zap.Int("failures", res.Failures),
				zap.Int("pruned", len(res.Pruned)))
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
			return nil
		}),
	}
}
