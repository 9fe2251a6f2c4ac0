// Package ingest registers specimen images from local directories or remote
// digitization drops. Identity is the content hash of the image bytes;
// re-ingesting the same content under a different filename attaches a source
// ref to the existing specimen instead of creating a second one.
package ingest

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/identity"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

// File is one image offered by a source. Ref is the source-relative path
// recorded as provenance; Open streams the image bytes.
type File struct {
	Ref  string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Source enumerates image files. Implementations call fn once per file and
// stop on the first error.
type Source interface {
	Walk(ctx context.Context, fn func(File) error) error
}

// Report summarizes one ingest run.
type Report struct {
	Files     int
	Specimens int
	// Duplicates counts files whose content matched an already-registered
	// specimen. Their refs are attached, not dropped.
	Duplicates int
}

// Ingestor registers files from a source into the store.
type Ingestor struct {
	store store.Store
}

// New creates an Ingestor over the given store.
func New(st store.Store) *Ingestor {
	return &Ingestor{store: st}
}

// Run walks the source and registers every image. Returns the report and
// the first error encountered; registration up to that point is kept.
func (in *Ingestor) Run(ctx context.Context, src Source) (*Report, error) {
	rep := &Report{}
	seen := map[string]struct{}{}

	err := src.Walk(ctx, func(f File) error {
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
		rep.Files++
		if _, dup := seen[string(id)]; dup {
			rep.Duplicates++
		} else {
			sp, err := in.store.GetSpecimen(ctx, id)
			if err == nil && sp != nil {
				rep.Duplicates++
			} else {
				rep.Specimens++
			}
			seen[string(id)] = struct{}{}
		}

		if _, err := in.store.RegisterSpecimen(ctx, id, f.Ref); err != nil {
			return err
		}
		zap.L().Debug("ingested image",
			zap.String("ref", f.Ref),
			zap.String("identity", string(id)),
		)
		return nil
	})
	if err != nil {
		return rep, err
	}

	zap.L().Info("ingest complete",
		zap.Int("files", rep.Files),
		zap.Int("specimens", rep.Specimens),
		zap.Int("duplicates", rep.Duplicates),
	)
	return rep, nil
}

// imageExts are the file extensions sources treat as specimen images.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// IsImage reports whether path has a recognized image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}
