package mockengine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/n9te9/subgraph-proxy/internal/mockengine"
)

func TestFileResolverSourceLoaderCachesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mocks.yaml")
	if err := os.WriteFile(path, []byte("_globals:\n  Product:\n    name: First\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := mockengine.NewFileResolverSourceLoader(path)

	file, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := file["_globals"]["Product"].(map[string]any)["name"]; got != "First" {
		t.Fatalf("expected First, got %v", got)
	}

	if err := os.WriteFile(path, []byte("_globals:\n  Product:\n    name: Second\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err = loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := file["_globals"]["Product"].(map[string]any)["name"]; got != "First" {
		t.Fatalf("expected cached value First before invalidation, got %v", got)
	}

	loader.Invalidate()

	file, err = loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := file["_globals"]["Product"].(map[string]any)["name"]; got != "Second" {
		t.Fatalf("expected Second after invalidation, got %v", got)
	}
}

func TestFileResolverSourceLoaderMissingFileIsNotError(t *testing.T) {
	loader := mockengine.NewFileResolverSourceLoader(filepath.Join(t.TempDir(), "missing.yaml"))

	file, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(file) != 0 {
		t.Fatalf("expected empty resolvers file, got %#v", file)
	}
}
