package main

import (
	"github.com/spf13/cobra"

	"github.com/carboniq/carboniq-rewards/internal/bootstrap"
)

var recalculateRanksCmd = &cobra.Command{
	Use:   "recalculate-ranks",
	Short: "Recompute the stored all-time rank of every user",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		job := app.RankJob(bootstrap.NewSlog(app.Config))
		if err := job.Run(cmd.Context()); err != nil {
			return err
		}

		st := job.LastStats()
		okf(cmd.OutOrStdout(), "ranked %d users in %d batches (%s), %d cache keys dropped",
			st.Ranked, st.Batches, st.Duration.Round(1e6), st.CacheKeysDropped)
		if st.CacheError != nil {
			warnf(cmd.ErrOrStderr(), "cache invalidation failed: %v", st.CacheError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recalculateRanksCmd)
}
