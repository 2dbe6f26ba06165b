// Package schemacache implements spec.md §4.3: it loads a compiled schema
// for a subgraph from one of three sources (local file, live
// introspection, or the registry), keeps at most one entry per subgraph
// name, and runs a periodic refresher (every TTL plus jitter) that reloads
// whichever entries are still unexpired when it fires.
//
// The bounded store is an otter.Cache, the same capacity-evicting cache
// Resinat-Resin/internal/node/latency.go uses for its per-domain latency
// table; TTL expiry stays application-level (CachedSchemaEntry.ExpiresAt)
// since otter's own eviction clock has no notion of "this subgraph's
// configured TTL" and would fight a cache-level expiry policy layered on
// top of it. Redundant concurrent loads on a cache miss are deliberately
// tolerated (spec.md §4.3), but an xsync.Map-based in-flight marker still
// collapses the common case of many requests racing the very same miss
// into one actual fetch.
package schemacache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/n9te9/subgraph-proxy/federation/graph"
	"github.com/n9te9/subgraph-proxy/internal/apperr"
	"github.com/n9te9/subgraph-proxy/internal/config"
)

// CachedSchemaEntry is the compiled schema object, the SDL text it was
// built from, a content-addressed version, and its cache lifetime.
type CachedSchemaEntry struct {
	Schema    *graph.Schema
	Entities  *graph.SubGraphV2 // ast-derived entity/key metadata; nil if the SDL failed the ast parse
	SDL       string
	Version   string
	FetchedAt time.Time
	ExpiresAt time.Time
}

func (e CachedSchemaEntry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// RegistryClient is the default (case 4) schema source: fetching a
// subgraph's SDL from the central registry. *apollo.Client satisfies this.
type RegistryClient interface {
	FetchSDL(ctx context.Context, subgraphName string) (string, error)
}

type subgraphSource struct {
	URL    string
	Config config.SubgraphConfig
}

// Cache is the Schema Cache component: per-subgraph compiled schema
// storage with TTL expiry and a periodic background refresher.
type Cache struct {
	store    otter.Cache[string, CachedSchemaEntry]
	sources  *xsync.Map[string, subgraphSource]
	inflight *xsync.Map[string, chan struct{}]

	ttl       time.Duration
	schemaDir string
	registry  RegistryClient
	log       *slog.Logger

	refreshMu   sync.Mutex
	refreshStop chan struct{}
	refreshing  bool
}

// New returns a Cache bounded to capacity entries, with the given default
// TTL and schema file directory (spec.md §4.3 case 1: "a well-known
// schemas/ directory").
func New(capacity int, ttl time.Duration, schemaDir string, registry RegistryClient, logger *slog.Logger) *Cache {
	store, err := otter.MustBuilder[string, CachedSchemaEntry](capacity).
		Cost(func(_ string, _ CachedSchemaEntry) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("schemacache: failed to build store: " + err.Error())
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		store:     store,
		sources:   xsync.NewMap[string, subgraphSource](),
		inflight:  xsync.NewMap[string, chan struct{}](),
		ttl:       ttl,
		schemaDir: schemaDir,
		registry:  registry,
		log:       logger,
	}
}

// SetSubgraphConfig records where name's schema should be loaded from.
func (c *Cache) SetSubgraphConfig(name, url string, cfg config.SubgraphConfig) {
	c.sources.Store(name, subgraphSource{URL: url, Config: cfg})
}

// Has reports whether an unexpired entry exists for name.
func (c *Cache) Has(name string) bool {
	entry, ok := c.store.Get(name)
	if !ok {
		return false
	}
	return !entry.expired(time.Now())
}

// GetSchema returns name's compiled schema, loading it from its configured
// source on a cache miss or expiry.
func (c *Cache) GetSchema(ctx context.Context, name string) (*CachedSchemaEntry, error) {
	if entry, ok := c.store.Get(name); ok && !entry.expired(time.Now()) {
		return &entry, nil
	}

	return c.load(ctx, name)
}

// load performs (or waits out a concurrent) fetch-and-store for name.
func (c *Cache) load(ctx context.Context, name string) (*CachedSchemaEntry, error) {
	done := make(chan struct{})
	existing, loaded := c.inflight.LoadOrStore(name, done)
	if loaded {
		select {
		case <-existing:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if entry, ok := c.store.Get(name); ok {
			return &entry, nil
		}
		return nil, fmt.Errorf("schema load for subgraph %q failed", name)
	}

	defer func() {
		close(done)
		c.inflight.Delete(name)
	}()

	entry, err := c.fetchAndStore(ctx, name)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Cache) fetchAndStore(ctx context.Context, name string) (*CachedSchemaEntry, error) {
	src, ok := c.sources.Load(name)
	if !ok {
		return nil, apperr.New(apperr.SchemaNotFound, "no schema source configured for subgraph").
			WithExtension("subgraph", name)
	}

	sdl, err := c.loadSDL(ctx, name, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema for subgraph %q: %w", name, err)
	}

	compiled, err := graph.Parse(name, []byte(sdl))
	if err != nil {
		return nil, err
	}

	// Entities is best-effort: mockengine falls back to Schema.KeyFields
	// when the ast-based parse fails or the SDL declares no @key entities.
	entities, err := graph.NewSubGraphV2(name, []byte(sdl), src.URL)
	if err != nil {
		c.log.Warn("failed to derive entity metadata from schema", "subgraph", name, "error", err)
		entities = nil
	}

	now := time.Now()
	entry := CachedSchemaEntry{
		Schema:    compiled,
		Entities:  entities,
		SDL:       sdl,
		Version:   version(sdl),
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.store.Set(name, entry)
	return &entry, nil
}

// loadSDL implements spec.md §4.3's source-selection precedence.
func (c *Cache) loadSDL(ctx context.Context, name string, src subgraphSource) (string, error) {
	cfg := src.Config

	switch {
	case cfg.SchemaFile != "":
		b, err := os.ReadFile(filepath.Join(c.schemaDir, cfg.SchemaFile))
		if err != nil {
			return "", fmt.Errorf("failed to read schema file: %w", err)
		}
		return string(b), nil

	case cfg.UseLocalSchema && src.URL != "":
		return Introspect(ctx, src.URL, cfg.IntrospectionHeaders, cfg.MaxRetries, cfg.RetryDelayMs)

	case cfg.UseLocalSchema:
		return "", fmt.Errorf("useLocalSchema is set but no schemaFile or URL is configured")

	default:
		if c.registry == nil {
			return "", fmt.Errorf("no registry client configured")
		}
		return c.registry.FetchSDL(ctx, name)
	}
}

func version(sdl string) string {
	sum := sha256.Sum256([]byte(sdl))
	return hex.EncodeToString(sum[:])
}

// WarmCache concurrently loads every name in names. Per-name failures are
// logged and do not abort the others.
func (c *Cache) WarmCache(ctx context.Context, names []string) {
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := c.GetSchema(ctx, name); err != nil {
				c.log.Warn("failed to warm schema cache", "subgraph", name, "error", err)
			}
		}(name)
	}
	wg.Wait()
}

// StartPeriodicRefresh starts the single background refresher, running
// every TTL, that reloads exactly the set of currently-cached names.
// Calling this twice without an intervening StopPeriodicRefresh is a
// usage error and panics, per spec.md §4.3.
func (c *Cache) StartPeriodicRefresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.refreshing {
		panic("schemacache: StartPeriodicRefresh called twice without StopPeriodicRefresh")
	}
	c.refreshing = true
	c.refreshStop = make(chan struct{})
	stop := c.refreshStop

	go runJittered(stop, c.ttl, func() {
		c.refreshAll()
	})
}

// StopPeriodicRefresh stops the background refresher. A call with no
// refresher running is a no-op.
func (c *Cache) StopPeriodicRefresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if !c.refreshing {
		return
	}
	close(c.refreshStop)
	c.refreshing = false
}

func (c *Cache) refreshAll() {
	var names []string
	c.sources.Range(func(name string, _ subgraphSource) bool {
		if c.Has(name) {
			names = append(names, name)
		}
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, name := range names {
		if _, err := c.fetchAndStore(ctx, name); err != nil {
			c.log.Warn("failed to refresh schema", "subgraph", name, "error", err)
		}
	}
}
