package ingest

import (
	"context"
	"io"
	"net"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPSource walks a directory on an FTP server, the usual drop point for
// institutional scanning stations.
type FTPSource struct {
	// Addr is host or host:port; port 21 is assumed when absent.
	Addr string
	// User and Pass default to anonymous login when empty.
	User string
	Pass string
	// Root is the remote directory to walk.
	Root string
	// Timeout bounds dial and transfer operations.
	Timeout time.Duration
}

// Walk connects, recursively lists Root, and visits every image file. Refs
// are slash-separated paths relative to Root. One connection serves the
// whole walk; files are fetched sequentially.
func (s *FTPSource) Walk(ctx context.Context, fn func(File) error) error {
	addr := s.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "ingest: ftp dial")
	}
	defer conn.Quit()

	user, pass := s.User, s.Pass
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return eris.Wrap(err, "ingest: ftp login")
	}

	zap.L().Debug("ftp walk starting", zap.String("addr", addr), zap.String("root", s.Root))
	return s.walkDir(ctx, conn, s.Root, "", fn)
}

func (s *FTPSource) walkDir(ctx context.Context, conn *ftp.ServerConn, dir, rel string, fn func(File) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	entries, err := conn.List(dir)
	if err != nil {
		return eris.Wrapf(err, "ingest: ftp list %s", dir)
	}

	for _, e := range entries {
		switch e.Type {
		case ftp.EntryTypeFolder:
			if e.Name == "." || e.Name == ".." {
				continue
			}
			if err := s.walkDir(ctx, conn, path.Join(dir, e.Name), path.Join(rel, e.Name), fn); err != nil {
				return err
			}

		case ftp.EntryTypeFile:
			if !IsImage(e.Name) {
				continue
			}
			remote := path.Join(dir, e.Name)
			err := fn(File{
				Ref: path.Join(rel, e.Name),
				Open: func(context.Context) (io.ReadCloser, error) {
					resp, err := conn.Retr(remote)
					if err != nil {
						return nil, eris.Wrapf(err, "ingest: ftp retrieve %s", remote)
					}
					return resp, nil
				},
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
