package ingest

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LocalSource walks a directory tree on disk.
type LocalSource struct {
	Root string
}

// Walk visits every image file under Root in lexical order. Refs are
// slash-separated paths relative to Root.
func (s *LocalSource) Walk(ctx context.Context, fn func(File) error) error {
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !IsImage(path) {
			return nil
		}

		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		return fn(File{
			Ref: filepath.ToSlash(rel),
			Open: func(context.Context) (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	})
	if err != nil {
		return eris.Wrapf(err, "ingest: walk %s", s.Root)
	}
	return nil
}
