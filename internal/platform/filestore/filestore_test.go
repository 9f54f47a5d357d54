package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemStore_StoreAndDelete(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	url, err := s.Store(ctx, "c1/abc-pano.png", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if url != "/files/c1/abc-pano.png" {
		t.Errorf("unexpected url %q", url)
	}
	data, ok := s.Get("c1/abc-pano.png")
	if !ok || string(data) != "bytes" {
		t.Errorf("expected stored content, got %q ok=%v", data, ok)
	}

	if err := s.Delete(ctx, "c1/abc-pano.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "c1/abc-pano.png"); err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestCleanPath_RejectsTraversal(t *testing.T) {
	s := NewMemStore()
	tests := []string{"", "..", "../etc/passwd", "a/../../b"}
	for _, p := range tests {
		if _, err := s.Store(context.Background(), p, strings.NewReader("x")); err != ErrInvalidPath {
			t.Errorf("path %q: expected ErrInvalidPath, got %v", p, err)
		}
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(root)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	url, err := s.Store(ctx, "c2/xyz-bitewing.jpg", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if url != "/files/c2/xyz-bitewing.jpg" {
		t.Errorf("unexpected url %q", url)
	}

	data, err := os.ReadFile(filepath.Join(root, "c2", "xyz-bitewing.jpg"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("expected image-bytes, got %q", data)
	}

	if err := s.Delete(ctx, "c2/xyz-bitewing.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "c2/xyz-bitewing.jpg"); err != ErrFileNotFound {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}
