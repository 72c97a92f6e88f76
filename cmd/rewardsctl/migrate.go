package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		okf(cmd.OutOrStdout(), "applied %d migration(s)", n)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		migs, err := app.MigrationStatus(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range migs {
			if m.IsApplied {
				okf(out, "%04d %-32s applied %s", m.Version, m.Name, m.AppliedAt.UTC().Format("2006-01-02 15:04"))
			} else {
				fmt.Fprintf(out, "%04d %-32s pending\n", m.Version, m.Name)
			}
		}
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the newest applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.RollbackMigration(cmd.Context()); err != nil {
			return err
		}
		okf(cmd.OutOrStdout(), "rolled back the newest migration")
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateRollbackCmd)
	rootCmd.AddCommand(migrateCmd)
}
