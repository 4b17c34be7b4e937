// Package storage keeps the files attached to documents and imports.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoObject    = errors.New("storage: no object")
	ErrInvalidPath = errors.New("storage: invalid path")
)

// FileStore stores files under relative paths such as "documents/<name>".
// Paths returned by Save are the only ones callers should persist.
type FileStore interface {
	Save(ctx context.Context, dir, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// objectPath builds a unique relative path for an uploaded file, keeping the
// base of the client supplied name for readability.
func objectPath(dir, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == ':' || r < 0x20:
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" {
		base = "file"
	}
	return path.Join(dir, uuid.NewString()+"_"+base)
}
