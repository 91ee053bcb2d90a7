package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/db"
	"github.com/sells-group/siting-cli/internal/features"
)

var (
	importPath   string
	importRegion string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a GeoJSON or shapefile extract into the feature table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("store.database_url is required (SITING_STORE_DATABASE_URL)")
		}

		feats, err := readFeatureFile(ctx, importPath)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrateFeatureTable(ctx, pool, cfg.Features.Table); err != nil {
			return err
		}

		n, err := features.Import(ctx, pool, cfg.Features.Table, importRegion, feats)
		if err != nil {
			return eris.Wrap(err, "import features")
		}

		zap.L().Info("import complete",
			zap.String("file", importPath),
			zap.String("region", importRegion),
			zap.Int64("rows", n),
		)
		return nil
	},
}

// readFeatureFile parses a .shp file as a shapefile and anything else as
// GeoJSON.
func readFeatureFile(ctx context.Context, path string) ([]features.Feature, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return features.ParseShapefile(ctx, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return features.ParseGeoJSON(data)
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "GeoJSON or .shp file (required)")
	importCmd.Flags().StringVar(&importRegion, "region", "", "region name to store the features under (required)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(importCmd)
}
