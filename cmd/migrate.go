package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/db"
	"github.com/sells-group/siting-cli/internal/features"
)

var migrateFeatures bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the run store schema",
	Long:  "Creates the run history tables. With --features also creates the PostGIS feature table used by the postgres feature source.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("run store migrated", zap.String("driver", cfg.Store.Driver))

		if !migrateFeatures {
			return nil
		}
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer pool.Close()
		return migrateFeatureTable(ctx, pool, cfg.Features.Table)
	},
}

func migrateFeatureTable(ctx context.Context, pool db.Pool, table string) error {
	if table == "" {
		table = features.DefaultTable
	}
	if _, err := pool.Exec(ctx, features.TableDDL(table)); err != nil {
		return eris.Wrapf(err, "create feature table %s", table)
	}
	zap.L().Info("feature table ready", zap.String("table", table))
	return nil
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateFeatures, "features", false, "also create the feature table (needs store.database_url)")
	rootCmd.AddCommand(migrateCmd)
}
