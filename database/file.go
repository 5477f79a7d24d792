package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores each collection as <dir>/<collection>.json and rewrites
// the whole file on every save.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("file backend requires a data directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

func (b *FileBackend) Load(_ context.Context, collection string) ([]byte, error) {
	data, err := os.ReadFile(b.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}
	return data, nil
}

// Save writes through a temp file so a crash mid-write never leaves a
// truncated collection behind.
func (b *FileBackend) Save(_ context.Context, collection string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", collection, err)
	}
	if err := os.Rename(tmp.Name(), b.path(collection)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", collection, err)
	}
	return nil
}

func (b *FileBackend) Ping(_ context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.dir)
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }
