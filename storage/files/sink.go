package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/bulletin"
)

var ErrInvalidName = errors.New("invalid file name")

// DirSink saves bulletins as files of a single directory.
type DirSink struct {
	dir string
}

var _ bulletin.Sink = (*DirSink)(nil)

// NewDirSink creates dir if it does not exist.
func NewDirSink(dir string) (*DirSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("no output directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Dir() string { return s.dir }

// Save writes r to a temporary file then renames it, so readers never see a partial bulletin.
// An existing file with the same name is replaced.
func (s *DirSink) Save(ctx context.Context, filename string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == ".." || name == string(filepath.Separator) || name != filename {
		return errors.Wrap(ErrInvalidName, filename)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err = io.Copy(tmp, r); err != nil {
		cleanup()
		return err
	}
	if err = tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err = os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
