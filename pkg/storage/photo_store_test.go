package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStoreSaveIsContentAddressed(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	ctx := context.Background()

	path1, err := store.Save(ctx, "rex.JPG", []byte("photo-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(path1, "/static/pets/") {
		t.Fatalf("expected public prefix, got %q", path1)
	}
	if !strings.HasSuffix(path1, ".jpg") {
		t.Fatalf("expected lower-cased original extension, got %q", path1)
	}

	// Same bytes under a different name map to the same path.
	path2, err := store.Save(ctx, "copy-of-rex.jpg", []byte("photo-bytes"))
	if err != nil {
		t.Fatalf("save duplicate: %v", err)
	}
	if path1 != path2 {
		t.Fatalf("identical content must share a path: %q vs %q", path1, path2)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.Base(path1)))
	if err != nil {
		t.Fatalf("read stored photo: %v", err)
	}
	if string(data) != "photo-bytes" {
		t.Fatalf("second save must not corrupt the first copy")
	}
}

func TestDiskStoreDistinctContentDistinctPaths(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	ctx := context.Background()
	path1, err := store.Save(ctx, "a.png", []byte("content-a"))
	if err != nil {
		t.Fatalf("save a: %v", err)
	}
	path2, err := store.Save(ctx, "a.png", []byte("content-b"))
	if err != nil {
		t.Fatalf("save b: %v", err)
	}
	if path1 == path2 {
		t.Fatalf("distinct content must not share a path")
	}
}

func TestDiskStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	if _, err := store.Save(context.Background(), "a.png", []byte("content")); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the published photo, got %d entries", len(entries))
	}
	if strings.Contains(entries[0].Name(), ".tmp-") {
		t.Fatalf("temp file leaked: %s", entries[0].Name())
	}
}

func TestNewDiskStoreRequiresBasePath(t *testing.T) {
	if _, err := NewDiskStore("  ", ""); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}

func TestContentAddressedNameIsDeterministic(t *testing.T) {
	a := ContentAddressedName("x/y/rex.png", []byte("same"))
	b := ContentAddressedName("other.PNG", []byte("same"))
	if a != b {
		t.Fatalf("name must be a pure function of content and extension: %q vs %q", a, b)
	}
	if !strings.HasSuffix(a, ".png") {
		t.Fatalf("expected extension kept, got %q", a)
	}
	if len(a) != 64+len(".png") {
		t.Fatalf("expected sha-256 hex digest, got %q", a)
	}
}
