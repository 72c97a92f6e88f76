package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carboniq/carboniq-rewards/internal/infrastructure/legacy"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

var importFlags struct {
	uri        string
	database   string
	skipResync bool
}

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Copy users, reports and rewards from the legacy MongoDB database",
	Long: `Copies institutions, users, reports and rewards from the legacy MongoDB
database, then rebuilds every imported user's snapshot. Re-running is safe:
reports are keyed by id and ledger entries carry stable idempotency keys.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		uri := importFlags.uri
		if uri == "" {
			uri = app.Config.Legacy.MongoURI
		}
		db := importFlags.database
		if db == "" {
			db = app.Config.Legacy.Database
		}
		if uri == "" {
			return fmt.Errorf("legacy MongoDB URI is required (--mongo-uri or LEGACY_MONGO_URI)")
		}

		src, err := legacy.Connect(cmd.Context(), uri, db)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = src.Close(ctx)
		}()
		src.OnDecodeError(func(collection string, err error) {
			app.Logger.Warn("skipping undecodable document", logger.String("collection", collection), logger.Err(err))
		})

		importer := legacy.NewImporter(src, app.Writer, app.Reports, app.Ledger,
			legacy.ResyncFunc(app.Resync),
			legacy.Config{
				ResyncConcurrency: app.Config.Legacy.ResyncConcurrency,
				SkipResync:        importFlags.skipResync,
			},
			app.Logger,
		)

		stats, runErr := importer.Run(cmd.Context())
		if stats != nil {
			if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		return app.InvalidateLeaderboards(cmd.Context())
	},
}

func init() {
	f := importLegacyCmd.Flags()
	f.StringVar(&importFlags.uri, "mongo-uri", "", "legacy MongoDB URI (default LEGACY_MONGO_URI)")
	f.StringVar(&importFlags.database, "database", "", "legacy database name (default LEGACY_MONGO_DB)")
	f.BoolVar(&importFlags.skipResync, "skip-resync", false, "do not rebuild snapshots after importing")
	rootCmd.AddCommand(importLegacyCmd)
}
