package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/ingest"
)

var ingestFTP bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Register specimen images from a directory or FTP drop",
	Long:  "Hashes every image and registers it as a specimen. Re-ingesting the same content under a new filename attaches a source ref instead of creating a duplicate.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var src ingest.Source
		switch {
		case ingestFTP:
			if cfg.Ingest.FTPAddr == "" {
				return eris.New("ftp ingest requires ingest.ftp_addr (HERBARIUM_INGEST_FTP_ADDR)")
			}
			src = &ingest.FTPSource{
				Addr:    cfg.Ingest.FTPAddr,
				User:    cfg.Ingest.FTPUser,
				Pass:    cfg.Ingest.FTPPass,
				Root:    cfg.Ingest.FTPRoot,
				Timeout: time.Duration(cfg.Ingest.TimeoutSec) * time.Second,
			}
		case len(args) == 1:
			src = &ingest.LocalSource{Root: args[0]}
		default:
			return eris.New("pass a directory or use --ftp")
		}

		rep, err := ingest.New(st).Run(ctx, src)
		if err != nil {
			return err
		}

		fmt.Printf("Files:      %d\n", rep.Files)
		fmt.Printf("Specimens:  %d new\n", rep.Specimens)
		fmt.Printf("Duplicates: %d\n", rep.Duplicates)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFTP, "ftp", false, "ingest from the configured FTP drop instead of a local directory")
	rootCmd.AddCommand(ingestCmd)
}
