package audit

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	primarySuffix = "primary.txt"
	backupSuffix  = "backup.txt"
)

// FileSink appends each record to a primary and a backup file per category
// under Dir.
type FileSink struct {
	fs  afero.Fs
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(fs afero.Fs, dir string) (*FileSink, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.WithMessagef(err, "creating audit dir %s", dir)
	}
	return &FileSink{fs: fs, dir: dir}, nil
}

func (s *FileSink) Name() string { return "file" }

// Paths returns the primary and backup file for c.
func (s *FileSink) Paths(c Category) (primary, backup string) {
	base := filepath.Join(s.dir, FileName(c))
	return base + primarySuffix, base + backupSuffix
}

func (s *FileSink) Write(_ context.Context, e Entry) error {
	primary, backup := s.Paths(e.Category)
	line := e.Record() + "\n"
	if err := appendLine(s.fs, primary, line); err != nil {
		return err
	}
	return appendLine(s.fs, backup, line)
}

func appendLine(fs afero.Fs, path, line string) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return errors.WithMessagef(err, "opening %s", path)
	}
	if _, err = f.WriteString(line); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "writing %s", path)
	}
	return errors.WithMessagef(f.Close(), "closing %s", path)
}
