package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage keeps snapshots as files in a local directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed and returns a FileStorage
// rooted at it.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Save writes data to a file named name, replacing any existing file.
func (fs *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	file, err := os.Create(filepath.Join(fs.dir, name))
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// Load opens the named file for reading.
func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(fs.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	return file, nil
}

// List returns the names of regular files starting with prefix.
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Delete removes the named file.
func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(fs.dir, name))
}
