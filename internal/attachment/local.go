package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore reads attachments from the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a LocalStore. With an empty baseDir paths are used
// as given; otherwise every path is resolved inside baseDir and cannot
// escape it.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

func (s *LocalStore) resolve(path string) string {
	if s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, filepath.Clean(string(filepath.Separator)+path))
}

// Exists reports whether path is a regular file.
func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	info, err := os.Stat(s.resolve(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("attachment: stat: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Open opens the file for reading.
// Returns ErrNotFound if the file does not exist.
func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("attachment: open file: %w", err)
	}
	return f, nil
}
