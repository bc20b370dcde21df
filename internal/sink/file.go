package sink

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"marketingest/internal/table"
)

// FileSink writes each artifact as a CSV file under a root directory.
// Writes go to a temporary file that is renamed into place, so a re-run
// replaces an artifact without ever exposing a partially written one.
type FileSink struct {
	fs   afero.Fs
	root string
}

// NewFileSink creates a sink rooted at dir on the given filesystem,
// creating the directory tree if it doesn't already exist.
func NewFileSink(fsys afero.Fs, dir string) (*FileSink, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}
	return &FileSink{fs: fsys, root: dir}, nil
}

// Store implements the Sink interface
func (s *FileSink) Store(ctx context.Context, key string, payload *table.Table) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	data, err := payload.CSV()
	if err != nil {
		return "", NewInvalidPayloadError(key, "failed to encode payload", err)
	}

	if err := ctx.Err(); err != nil {
		return "", NewUnavailableError(key, err)
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", classifyFSError(key, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", classifyFSError(key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", classifyFSError(key, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", classifyFSError(key, err)
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return "", classifyFSError(key, err)
	}

	return path, nil
}

// resolve maps a storage key to a path inside the root directory
func (s *FileSink) resolve(key string) (string, error) {
	if key == "" {
		return "", NewInvalidPayloadError(key, "empty storage key", nil)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", NewInvalidPayloadError(key, "storage key escapes the output directory", nil)
	}
	return filepath.Join(s.root, clean), nil
}

func classifyFSError(key string, err error) *SinkError {
	if errors.Is(err, fs.ErrPermission) {
		return NewPermissionDeniedError(key, err)
	}
	return NewUnavailableError(key, err)
}
