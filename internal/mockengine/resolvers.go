package mockengine

import (
	"sync"

	"github.com/n9te9/subgraph-proxy/internal/config"
)

// globalsKey is the mock resolvers file's subgraph-agnostic layer name,
// per spec.md §4.4 ("Subgraph-agnostic globals map ... key _globals").
const globalsKey = "_globals"

// ResolverSourceLoader loads the resolver-map layers a mock resolvers file
// supplies. spec.md §9 calls for "a pluggable ResolverSourceLoader
// interface that returns a {_globals?, <subgraphName>?} map"; the shipped
// implementation is FileResolverSourceLoader, backed by a YAML file
// instead of the runtime-loadable JS module the original names, per §9's
// "a declarative mock-config format is an equivalent substitution."
type ResolverSourceLoader interface {
	Load() (config.MockResolversFile, error)
	Invalidate()
}

// FileResolverSourceLoader loads a mock resolvers YAML file and caches it
// until Invalidate is called, matching spec.md §4.4's "loaded module is
// cached until an explicit invalidation."
type FileResolverSourceLoader struct {
	Path string

	mu     sync.Mutex
	loaded bool
	cached config.MockResolversFile
}

var _ ResolverSourceLoader = (*FileResolverSourceLoader)(nil)

func NewFileResolverSourceLoader(path string) *FileResolverSourceLoader {
	return &FileResolverSourceLoader{Path: path}
}

func (l *FileResolverSourceLoader) Load() (config.MockResolversFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.cached, nil
	}

	file, err := config.LoadMockResolversFile(l.Path)
	if err != nil {
		// spec.md §4.4: "If parsing or loading fails, proceed with
		// defaults" - callers treat a loader error as "no custom
		// resolvers" rather than failing the request.
		return config.MockResolversFile{}, err
	}

	l.cached = file
	l.loaded = true
	return l.cached, nil
}

func (l *FileResolverSourceLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	l.cached = nil
}

// StaticResolverSourceLoader serves a fixed, in-memory resolvers file.
// Used by tests and by per-call overrides that never touch disk.
type StaticResolverSourceLoader struct {
	File config.MockResolversFile
}

var _ ResolverSourceLoader = StaticResolverSourceLoader{}

func (l StaticResolverSourceLoader) Load() (config.MockResolversFile, error) {
	return l.File, nil
}

func (l StaticResolverSourceLoader) Invalidate() {}

// resolverLayers is the ordered, later-layer-wins stack of per-type
// resolver maps spec.md §4.4 describes: globals, then the subgraph's own
// entry, then a per-call override. Lookup is whole-type replacement: the
// first layer (highest precedence first) that defines typeName wins in
// full, never merged field-by-field with a lower layer's entry for the
// same type.
type resolverLayers struct {
	layers []config.ResolverMap
}

func newResolverLayers(file config.MockResolversFile, subgraphName string, override config.ResolverMap) resolverLayers {
	var layers []config.ResolverMap
	if override != nil {
		layers = append(layers, override)
	}
	if sub, ok := file[subgraphName]; ok {
		layers = append(layers, sub)
	}
	if globals, ok := file[globalsKey]; ok {
		layers = append(layers, globals)
	}
	return resolverLayers{layers: layers}
}

// forType returns the resolver entry for typeName from the
// highest-precedence layer that defines it, or nil if none does.
func (r resolverLayers) forType(typeName string) any {
	for _, layer := range r.layers {
		if v, ok := layer[typeName]; ok {
			return v
		}
	}
	return nil
}

// fieldOverride returns an explicit value for typeName.fieldName if some
// layer's entry for typeName is a field map naming fieldName.
func (r resolverLayers) fieldOverride(typeName, fieldName string) (any, bool) {
	entry := r.forType(typeName)
	fields, ok := entry.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := fields[fieldName]
	return v, ok
}
