package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/provenance"
)

var statusCmd = &cobra.Command{
	Use:   "status [identity]",
	Short: "Show store-wide counts or one specimen's lineage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if len(args) == 1 {
			lin, err := provenance.New(st).Lineage(ctx, model.Identity(args[0]))
			if err != nil {
				return err
			}
			printLineage(lin)
			return nil
		}

		attempts, err := st.AttemptCounts(ctx)
		if err != nil {
			return err
		}
		flags, err := st.FlagCounts(ctx)
		if err != nil {
			return err
		}
		dupes, err := st.ListDuplicateCatalogNumbers(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Attempts:")
		for _, s := range []model.AttemptStatus{model.AttemptPending, model.AttemptComplete, model.AttemptFailed} {
			fmt.Printf("  %-9s %d\n", s, attempts[s])
		}

		fmt.Println("Flags:")
		kinds := make([]string, 0, len(flags))
		for k := range flags {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("  %-26s %d\n", k, flags[model.FlagKind(k)])
		}

		if len(dupes) > 0 {
			fmt.Printf("Contested catalog numbers: %d\n", len(dupes))
		}
		return nil
	},
}

func printLineage(lin *model.Lineage) {
	fmt.Printf("Specimen %s\n", lin.Specimen.Identity)
	fmt.Printf("  first seen %s\n", lin.Specimen.FirstSeenAt.Format("2006-01-02 15:04:05"))
	for _, ref := range lin.Specimen.SourceRefs {
		fmt.Printf("  source %s\n", ref)
	}
	for _, tr := range lin.Transformations {
		fmt.Printf("  derived %s (%s)\n", tr.DerivedIdentity, tr.Kind)
	}
	for _, att := range lin.Attempts {
		fmt.Printf("  attempt %s %s/%s %s\n", att.ID[:8], att.Provider, att.Model, att.Status)
	}
	if lin.Record != nil {
		fmt.Printf("  record: %d fields, confidence %.2f\n", len(lin.Record.Fields), lin.Record.Confidence)
		if n := lin.Record.CatalogNumber(); n != "" {
			fmt.Printf("  catalogNumber %s\n", n)
		}
	}
	for _, f := range lin.Flags {
		fmt.Printf("  flag [%s] %s: %s\n", f.Severity, f.Kind, f.Detail)
	}
	if lin.Specimen.ReviewRef != "" {
		fmt.Printf("  review %s\n", lin.Specimen.ReviewRef)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
