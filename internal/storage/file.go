package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File keeps one JSON document per key under root. Writes go through a
// temp file and a rename, so readers never see a half-written record.
type File struct {
	root string
}

func NewFile(root string) (*File, error) {
	if root == "" {
		return nil, errors.New("file storage: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	return &File{root: root}, nil
}

func (f *File) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}

	dst := filepath.Join(f.root, filepath.FromSlash(key))
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file storage: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("file storage: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("file storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage: close %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("file storage: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("file storage: rename %s: %w", key, err)
	}
	return nil
}

func (f *File) Close() error { return nil }
