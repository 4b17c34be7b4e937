package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// local is a store that uses the local filesystem.
type local struct {
	root string
}

// NewLocalStore returns a FileStore rooted at root, creating it if necessary.
func NewLocalStore(root string) (FileStore, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to make media root %q absolute: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create media root %q: %w", root, err)
	}
	return &local{root: root}, nil
}

// fullPath resolves a relative object path and refuses anything escaping the
// root.
func (s *local) fullPath(p string) (string, error) {
	p = strings.TrimPrefix(filepath.FromSlash(p), string(filepath.Separator))
	if p == "" {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.root, p)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return full, nil
}

func (s *local) Save(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := objectPath(dir, name)
	full, err := s.fullPath(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return "", err
	}
	if err := f.Sync(); err != nil {
		os.Remove(full)
		return "", err
	}
	return rel, nil
}

func (s *local) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	full, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrNoObject, p)
	}
	return f, err
}

func (s *local) Delete(ctx context.Context, p string) error {
	full, err := s.fullPath(p)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrNoObject, p)
	}
	return err
}
