package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute [identity...]",
	Short: "Rebuild aggregated records and quality flags",
	Long:  "Recomputes records from the stored attempt set. With no arguments every specimen is recomputed, which applies changed aggregation or audit settings retroactively.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 0 {
			n, err := e.pipe.RecomputeAll(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Recomputed %d records\n", n)
			return nil
		}

		for _, arg := range args {
			if err := e.pipe.Recompute(ctx, model.Identity(arg)); err != nil {
				return err
			}
		}
		fmt.Printf("Recomputed %d records\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}
