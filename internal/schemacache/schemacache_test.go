package schemacache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/n9te9/subgraph-proxy/internal/config"
	"github.com/n9te9/subgraph-proxy/internal/schemacache"
)

const productSDL = `type Product { id: ID! name: String price: Float } type Query { products: [Product!]! }`

type stubRegistry struct {
	sdl string
	err error
}

func (s stubRegistry) FetchSDL(ctx context.Context, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.sdl, nil
}

func TestGetSchemaFromRegistryDefault(t *testing.T) {
	cache := schemacache.New(100, time.Minute, t.TempDir(), stubRegistry{sdl: productSDL}, nil)
	cache.SetSubgraphConfig("products", "http://products.example.com/graphql", config.SubgraphConfig{}.WithDefaults())

	entry, err := cache.GetSchema(context.Background(), "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Schema.Name != "products" {
		t.Errorf("expected schema name products, got %s", entry.Schema.Name)
	}
	if entry.Version == "" {
		t.Error("expected non-empty version")
	}
	if !cache.Has("products") {
		t.Error("expected Has to be true right after load")
	}
}

func TestGetSchemaFromFileTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "products.graphql"), []byte(productSDL), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := schemacache.New(100, time.Minute, dir, stubRegistry{sdl: "type Query { other: String }"}, nil)
	cache.SetSubgraphConfig("products", "http://products.example.com/graphql", config.SubgraphConfig{
		SchemaFile: "products.graphql",
	}.WithDefaults())

	entry, err := cache.GetSchema(context.Background(), "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.SDL != productSDL {
		t.Errorf("expected file SDL to take precedence, got %q", entry.SDL)
	}
}

func TestGetSchemaUseLocalSchemaWithoutSourceFails(t *testing.T) {
	cache := schemacache.New(100, time.Minute, t.TempDir(), stubRegistry{sdl: productSDL}, nil)
	cache.SetSubgraphConfig("products", "", config.SubgraphConfig{UseLocalSchema: true}.WithDefaults())

	if _, err := cache.GetSchema(context.Background(), "products"); err == nil {
		t.Fatal("expected error when useLocalSchema is set with no file or URL")
	}
}

func TestHasExpiresAfterTTL(t *testing.T) {
	cache := schemacache.New(100, time.Millisecond, t.TempDir(), stubRegistry{sdl: productSDL}, nil)
	cache.SetSubgraphConfig("products", "http://products.example.com/graphql", config.SubgraphConfig{}.WithDefaults())

	if _, err := cache.GetSchema(context.Background(), "products"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cache.Has("products") {
		t.Fatal("expected Has true immediately after load")
	}

	time.Sleep(5 * time.Millisecond)
	if cache.Has("products") {
		t.Fatal("expected Has false after TTL expiry")
	}
}

func TestWarmCacheIsolatesFailures(t *testing.T) {
	cache := schemacache.New(100, time.Minute, t.TempDir(), stubRegistry{err: context.DeadlineExceeded}, nil)
	cache.SetSubgraphConfig("broken", "http://broken.example.com/graphql", config.SubgraphConfig{}.WithDefaults())
	cache.SetSubgraphConfig("products", "http://products.example.com/graphql", config.SubgraphConfig{}.WithDefaults())

	// Both names load through the same failing registry; this test only
	// needs to show WarmCache doesn't abort when loads fail, so we just
	// assert it returns without panicking and the broken entry stays absent.
	cache.WarmCache(context.Background(), []string{"broken", "products"})

	if cache.Has("broken") {
		t.Fatal("expected broken subgraph to remain uncached")
	}
}

func TestStartPeriodicRefreshTwiceWithoutStopPanics(t *testing.T) {
	cache := schemacache.New(100, time.Hour, t.TempDir(), stubRegistry{sdl: productSDL}, nil)
	cache.StartPeriodicRefresh()
	defer cache.StopPeriodicRefresh()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on second StartPeriodicRefresh")
		}
	}()
	cache.StartPeriodicRefresh()
}
