package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/osteo-api/pkg/errors"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	p, err := store.Save(ctx, "documents", "../../etc/x-ray.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "documents/"))
	assert.True(t, strings.HasSuffix(p, "_x-ray.pdf"))

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(p)))
	require.NoError(t, err)

	rc, err := store.Open(ctx, p)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, p))
	assert.ErrorIs(t, store.Delete(ctx, p), ErrNoObject)

	_, err = store.Open(ctx, p)
	assert.ErrorIs(t, err, ErrNoObject)
}

func TestLocalStoreRefusesEscapes(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{"../outside", "documents/../../outside", ""} {
		_, err := store.Open(ctx, p)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
		assert.ErrorIs(t, store.Delete(ctx, p), ErrInvalidPath, p)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, err := store.Save(ctx, "imports", "patients.csv", strings.NewReader("a;b"))
	require.NoError(t, err)
	assert.True(t, store.Exists(p))

	boom := errors.New("disk busy")
	store.FailDelete(p, boom)
	assert.ErrorIs(t, store.Delete(ctx, p), boom)
	assert.True(t, store.Exists(p))

	store.Put("imports/other.csv", []byte("x"))
	require.NoError(t, store.Delete(ctx, "imports/other.csv"))
	assert.False(t, store.Exists("imports/other.csv"))
	assert.ErrorIs(t, store.Delete(ctx, "imports/other.csv"), ErrNoObject)
}

func TestRemoveFilesAttemptsEverySlot(t *testing.T) {
	ctx := context.Background()
	fs := NewMemoryStore()
	fs.Put("imports/a.csv", []byte("a"))
	fs.Put("imports/b.csv", []byte("b"))
	fs.Put("imports/c.csv", []byte("c"))
	fs.FailDelete("imports/a.csv", errors.New("disk busy"))
	fs.FailDelete("imports/b.csv", errors.New("permission denied"))

	err := RemoveFiles(ctx, fs, "imports/a.csv", "imports/b.csv", "imports/c.csv", "imports/missing.csv", "")
	require.Error(t, err)

	var cleanup *apperrors.FileCleanupError
	require.True(t, errors.As(err, &cleanup))
	assert.Equal(t, []string{"imports/a.csv", "imports/b.csv"}, cleanup.Paths)
	assert.ErrorContains(t, err, "disk busy")
	assert.ErrorContains(t, err, "permission denied")
	assert.False(t, fs.Exists("imports/c.csv"))
}

func TestRemoveFilesNothingToDo(t *testing.T) {
	assert.NoError(t, RemoveFiles(context.Background(), NewMemoryStore()))
}
