package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "List candidates too close to an existing charger",
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

		set, err := env.Pipeline(cfg.Selection, false).Exclusions(ctx, fs)
		if err != nil {
			return eris.Wrap(err, "exclusions")
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d candidates excluded\n", len(set), len(fs.Candidates))
		return writeIDs(cmd.OutOrStdout(), format, set.IDs())
	},
}

func init() {
	addSitingFlags(exclusionsCmd)
	rootCmd.AddCommand(exclusionsCmd)
}
