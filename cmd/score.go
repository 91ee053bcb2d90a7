package main

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/siting-cli/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score candidates without solving",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyOverrides(cmd, cfg)
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		fs, err := env.LoadFeatures(ctx, regionFlag(cmd))
		if err != nil {
			return err
		}

		scored, err := env.Pipeline(cfg.Selection, false).Score(ctx, fs)
		if err != nil {
			return eris.Wrap(err, "score")
		}

		if top, _ := cmd.Flags().GetInt("top"); top > 0 {
			slices.SortStableFunc(scored, func(a, b model.Candidate) int {
				return cmp.Compare(b.BenefitScore, a.BenefitScore)
			})
			scored = scored[:min(top, len(scored))]
		}
		return writeCandidates(cmd.OutOrStdout(), format, scored)
	},
}

func init() {
	addSitingFlags(scoreCmd)
	scoreCmd.Flags().Int("top", 0, "only print the N highest scoring candidates")
	rootCmd.AddCommand(scoreCmd)
}
