// Package filestore provides durable storage for assigned X-ray image files.
// It defines the FileStore interface, a local-disk implementation, and an
// in-memory implementation suitable for testing and development.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid storage path")
)

// FileStore is the contract the assignment pipeline depends on. Store
// persists the content at the given relative path and returns a URL the
// stored file can later be served from. Delete is best-effort; callers log
// failures and move on.
type FileStore interface {
	Store(ctx context.Context, relPath string, content io.Reader) (string, error)
	Delete(ctx context.Context, relPath string) error
}

// cleanPath normalizes a relative storage path and rejects traversal.
func cleanPath(relPath string) (string, error) {
	if relPath == "" {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + relPath)
	if cleaned == "/" || strings.Contains(cleaned, "..") {
		return "", ErrInvalidPath
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// MemStore is a thread-safe, in-memory FileStore for testing/dev.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemStore returns a ready-to-use MemStore.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

func (s *MemStore) Store(_ context.Context, relPath string, content io.Reader) (string, error) {
	rel, err := cleanPath(relPath)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = data
	return "/files/" + rel, nil
}

func (s *MemStore) Delete(_ context.Context, relPath string) error {
	rel, err := cleanPath(relPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[rel]; !ok {
		return ErrFileNotFound
	}
	delete(s.files, rel)
	return nil
}

// Get returns the stored content, for test assertions.
func (s *MemStore) Get(relPath string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[relPath]
	return data, ok
}

// Paths returns all stored paths in sorted order, for test assertions.
func (s *MemStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
