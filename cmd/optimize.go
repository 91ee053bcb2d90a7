package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Select charging sites for a region",
	Long: `Runs the full siting pipeline: scores every candidate by nearby amenities
and population, excludes candidates near existing chargers and solves for
the set of sites with the highest net benefit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyOverrides(cmd, cfg)
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		sorted, _ := cmd.Flags().GetBool("sort")
		noStore, _ := cmd.Flags().GetBool("no-store")

		env, err := initEnv(ctx, !noStore)
		if err != nil {
			return err
		}
		defer env.Close()

		fs, err := env.LoadFeatures(ctx, regionFlag(cmd))
		if err != nil {
			return err
		}

		out, err := env.Pipeline(cfg.Selection, sorted).Run(ctx, fs)
		if err != nil {
			return eris.Wrap(err, "optimize")
		}

		zap.L().Info("optimize complete",
			zap.String("region", out.Region),
			zap.Int("selected", len(out.Sites)),
			zap.Float64("net_benefit", out.NetBenefit),
		)
		return writeSites(cmd.OutOrStdout(), format, out)
	},
}

func init() {
	addSitingFlags(optimizeCmd)
	optimizeCmd.Flags().Bool("sort", false, "order sites by descending benefit")
	optimizeCmd.Flags().Bool("no-store", false, "do not record the run")
	rootCmd.AddCommand(optimizeCmd)
}
