package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/siting-cli/internal/config"
)

// addSitingFlags registers the flags shared by optimize, score and
// exclusions. Values only take effect when set explicitly; otherwise the
// loaded config wins.
func addSitingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("region", "", "region name recorded with the run and used by the postgres feature source")
	f.String("features", "", "feature file (overrides features.path)")
	f.String("source", "", "feature source: geojson, shapefile or postgres (overrides features.source)")
	f.String("covariates", "", "ESRI ASCII population grid (sets covariate.provider=grid)")
	f.Float64("radius-km", 0, "neighbour search radius in km")
	f.Float64("fixed-cost", 0, "installation cost per site")
	f.Int("min-selected", 0, "minimum number of sites to select")
	f.Float64("min-distance-km", 0, "exclusion distance from existing chargers in km")
	f.Int("timeout", 0, "solver timeout in seconds")
	f.StringP("format", "o", "table", "output format: table, csv, json or yaml")
}

// applyOverrides copies explicitly set flags onto c.
func applyOverrides(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("features") {
		c.Features.Path, _ = f.GetString("features")
	}
	if f.Changed("source") {
		c.Features.Source, _ = f.GetString("source")
	}
	if f.Changed("covariates") {
		c.Covariate.Provider = "grid"
		c.Covariate.Path, _ = f.GetString("covariates")
	}
	if f.Changed("radius-km") {
		c.Scoring.RadiusKM, _ = f.GetFloat64("radius-km")
	}
	if f.Changed("fixed-cost") {
		c.Selection.FixedCost, _ = f.GetFloat64("fixed-cost")
	}
	if f.Changed("min-selected") {
		c.Selection.MinSelected, _ = f.GetInt("min-selected")
	}
	if f.Changed("min-distance-km") {
		c.Selection.MinExclusionDistanceKM, _ = f.GetFloat64("min-distance-km")
	}
	if f.Changed("timeout") {
		c.Selection.SolverTimeoutSecs, _ = f.GetInt("timeout")
	}
}

// regionFlag returns --region, or the feature file path when unset.
func regionFlag(cmd *cobra.Command) string {
	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		region = cfg.Features.Path
	}
	return region
}
