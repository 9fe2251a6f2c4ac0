package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/extract"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/identity"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/ingest"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/pipeline"
)

var (
	extractForce    bool
	extractProvider string
)

var extractCmd = &cobra.Command{
	Use:   "extract <dir>",
	Short: "Run label extraction over a directory of specimen images",
	Long:  "Registers each image, then runs the configured vision engines over it. Completed parameter sets are skipped unless --force; forced reruns that tie an existing result are kept as failed duplicates.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, extractForce)
		if err != nil {
			return err
		}
		defer e.Close()

		providers := e.engines.Precedence()
		if extractProvider != "" {
			providers = []string{extractProvider}
		}

		tasks, err := buildTasks(ctx, e, args[0], providers)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return eris.New("no images found, or no engines configured (set HERBARIUM_ANTHROPIC_KEY)")
		}

		sum, err := e.pipe.Run(ctx, tasks)
		if err != nil {
			return err
		}

		fmt.Printf("Extracted:  %d\n", sum.Extracted)
		fmt.Printf("Skipped:    %d (already covered)\n", sum.Skipped)
		fmt.Printf("Failed:     %d\n", sum.Failed)
		fmt.Printf("Duplicates: %d\n", sum.Duplicates)
		fmt.Printf("Recomputed: %d records\n", sum.Recomputed)
		return nil
	},
}

// buildTasks registers every image under dir and pairs it with each
// requested provider's engine.
func buildTasks(ctx context.Context, e *env, dir string, providers []string) ([]pipeline.Task, error) {
	var tasks []pipeline.Task

	src := &ingest.LocalSource{Root: dir}
	err := src.Walk(ctx, func(f ingest.File) error {
		rc, err := f.Open(ctx)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return err
		}

		id := identity.HashImage(data)
		if _, err := e.store.RegisterSpecimen(ctx, id, f.Ref); err != nil {
			return err
		}

		img := extract.ImageRef{
			Identity:  id,
			Path:      filepath.Join(dir, filepath.FromSlash(f.Ref)),
			MediaType: mime.TypeByExtension(filepath.Ext(f.Ref)),
		}
		for _, name := range providers {
			eng := e.engines.Get(name)
			if eng == nil {
				return eris.Errorf("no engine registered for provider %q", name)
			}
			tasks = append(tasks, pipeline.Task{
				Image:  img,
				Engine: eng,
				Params: extract.ParamSet{
					Provider:      name,
					Model:         cfg.Anthropic.Model,
					PromptVersion: cfg.Anthropic.PromptVersion,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func init() {
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "re-run extraction even when the parameter set is already covered")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "", "run only this provider (default: all configured)")
	rootCmd.AddCommand(extractCmd)
}
