package main

import (
	"github.com/spf13/cobra"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/catalogfile"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect reward catalogs",
}

var catalogDumpCmd = &cobra.Command{
	Use:   "dump [FILE]",
	Short: "Print a catalog as TOML; the built-in defaults when FILE is omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := catalog.Default()
		if len(args) == 1 {
			var err error
			if c, err = catalogfile.LoadFile(args[0]); err != nil {
				return err
			}
		}
		out, err := catalogfile.Marshal(c)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check that a catalog file loads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalogfile.LoadFile(args[0])
		if err != nil {
			return err
		}
		okf(cmd.OutOrStdout(), "ok: %d rules, %d goals, %d badges, %d levels",
			len(c.Rules()), len(c.Goals()), len(c.Badges()), c.Levels().Max())
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogDumpCmd, catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}
