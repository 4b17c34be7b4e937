package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-memory FileStore for tests and development.
type MemoryStore struct {
	mu          sync.RWMutex
	files       map[string][]byte
	deleteFails map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:       make(map[string][]byte),
		deleteFails: make(map[string]error),
	}
}

func (s *MemoryStore) Save(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p := objectPath(dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = data
	return p, nil
}

// Put stores data at an exact path.
func (s *MemoryStore) Put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = data
}

func (s *MemoryStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoObject, p)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.deleteFails[p]; ok {
		return err
	}
	if _, ok := s.files[p]; !ok {
		return fmt.Errorf("%w: %q", ErrNoObject, p)
	}
	delete(s.files, p)
	return nil
}

// Exists reports whether p is stored.
func (s *MemoryStore) Exists(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[p]
	return ok
}

// FailDelete makes every Delete of p return err.
func (s *MemoryStore) FailDelete(p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFails[p] = err
}
