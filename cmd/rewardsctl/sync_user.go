package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carboniq/carboniq-rewards/internal/application/command"
)

var syncUserCmd = &cobra.Command{
	Use:   "sync-user USER_ID...",
	Short: "Rebuild stats snapshots from the report history and ledger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var errs []error
		for _, id := range args {
			res, err := app.Commands.SyncUserStats.Handle(cmd.Context(), command.SyncUserStatsCommand{UserID: id})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			okf(cmd.OutOrStdout(), "%s: %d points (%+d), %d reports, streak %d",
				id, res.Snapshot.TotalPoints, res.PointsDelta, res.Snapshot.TotalReports, res.Snapshot.CurrentStreak)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(syncUserCmd)
}
