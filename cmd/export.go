package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/export"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/registry"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

var (
	exportOut    string
	exportTriage bool
	exportFlag   string
	exportAfter  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records as Darwin Core CSV or a curator triage workbook",
	Long:  "Streams specimens in identity order. Use --after with the last exported identity to resume an interrupted export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.SpecimenFilter{
			FlagKind: model.FlagKind(exportFlag),
			After:    model.Identity(exportAfter),
		}
		it := export.NewIterator(st, filter)

		if exportTriage {
			if exportOut == "" {
				return eris.New("--triage requires --out <path.xlsx>")
			}
			n, err := export.WriteTriage(ctx, exportOut, it)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d flag rows to %s (cursor %s)\n", n, exportOut, it.Cursor())
			return nil
		}

		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close()
			out = f
		}

		n, err := export.NewCSV(reg).Write(ctx, out, it)
		if err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("Wrote %d rows to %s (cursor %s)\n", n, exportOut, it.Cursor())
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default: stdout for CSV)")
	exportCmd.Flags().BoolVar(&exportTriage, "triage", false, "write the flagged-specimen XLSX workbook instead of CSV")
	exportCmd.Flags().StringVar(&exportFlag, "flag", "", "only specimens carrying this flag kind")
	exportCmd.Flags().StringVar(&exportAfter, "after", "", "resume past this identity cursor")
	rootCmd.AddCommand(exportCmd)
}
