package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore persists files under a root directory on the local filesystem.
// Stored files are served by the HTTP layer under /files/.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Root returns the storage root directory.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) Store(_ context.Context, relPath string, content io.Reader) (string, error) {
	rel, err := cleanPath(relPath)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	// Write to a temp file first so a crashed write never leaves a
	// half-written image at the final path.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize file: %w", err)
	}

	return "/files/" + rel, nil
}

func (s *DiskStore) Delete(_ context.Context, relPath string) error {
	rel, err := cleanPath(relPath)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return ErrFileNotFound
	}
	return err
}
