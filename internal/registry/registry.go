// Package registry implements spec.md §4.6's three-phase subgraph
// registry: fetch the registry's subgraph list, load local overrides,
// then merge the two into the Health Monitor and Schema Cache.
//
// Rethought from the teacher's deleted registry/registry.go, which was a
// push-based system (gateways dial in and register themselves). This
// spec's registry is pull-based: the proxy itself fetches a subgraph list
// from an external registry at startup and merges it with a local file,
// so the state lives in internal/health and internal/schemacache instead
// of a registry-owned table.
package registry

import (
	"context"
	"log/slog"

	"github.com/n9te9/subgraph-proxy/internal/apollo"
	"github.com/n9te9/subgraph-proxy/internal/config"
	"github.com/n9te9/subgraph-proxy/internal/health"
	"github.com/n9te9/subgraph-proxy/internal/schemacache"
)

// Lister is phase 1's dependency: *apollo.Client satisfies it.
type Lister interface {
	ListSubgraphs(ctx context.Context) ([]apollo.Subgraph, error)
}

// Registrar is the Health Monitor surface the merge step needs.
type Registrar interface {
	Register(name, url string, cfg config.SubgraphConfig)
	Unregister(name string)
}

// SchemaConfigurer is the Schema Cache surface the merge step needs.
type SchemaConfigurer interface {
	SetSubgraphConfig(name, url string, cfg config.SubgraphConfig)
	WarmCache(ctx context.Context, names []string)
}

// Summary is the count triple spec.md §4.6 requires startup to emit.
type Summary struct {
	TotalSubgraphs int
	FromApollo     int
	LocalOverrides int
}

// Init runs the three-phase subgraph registry initialization:
//  1. fetch the full subgraph list from the registry (empty list allowed)
//  2. load the local subgraph config file (absence is not an error,
//     already validated by config.LoadSubgraphsFile)
//  3. register every registry subgraph with default config, then replace
//     any name present in the local file with its local config, and warm
//     the schema cache for every registry-discovered name
//
// Local-only names (present in the file but not returned by the
// registry) are also registered, since a name the operator configured by
// hand is as real a subgraph as one the registry reported.
//
// healthCheckIntervalMs is Env.SubgraphCheckInterval in milliseconds; it
// seeds config.Default() for every registry-discovered subgraph that has
// no local override.
func Init(ctx context.Context, lister Lister, localFile *config.SubgraphsFile, monitor Registrar, schemas SchemaConfigurer, healthCheckIntervalMs int, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}

	subgraphs, err := lister.ListSubgraphs(ctx)
	if err != nil {
		return Summary{}, err
	}

	defaultCfg := config.Default(healthCheckIntervalMs)

	registryNames := make(map[string]string, len(subgraphs)) // name -> url
	for _, sg := range subgraphs {
		registryNames[sg.Name] = sg.URL
		register(monitor, schemas, sg.Name, sg.URL, defaultCfg)
	}

	localOverrides := 0
	if localFile != nil {
		for name, cfg := range localFile.Subgraphs {
			url, fromRegistry := registryNames[name]
			if !fromRegistry {
				logger.Info("registering local-only subgraph", "subgraph", name)
			}
			monitor.Unregister(name)
			register(monitor, schemas, name, url, cfg)
			localOverrides++
		}
	}

	warmNames := make([]string, 0, len(registryNames))
	for name := range registryNames {
		warmNames = append(warmNames, name)
	}
	schemas.WarmCache(ctx, warmNames)

	total := len(registryNames)
	for name := range localFileNames(localFile) {
		if _, ok := registryNames[name]; !ok {
			total++
		}
	}

	summary := Summary{
		TotalSubgraphs: total,
		FromApollo:     len(registryNames),
		LocalOverrides: localOverrides,
	}
	logger.Info("subgraph registry initialized",
		"totalSubgraphs", summary.TotalSubgraphs,
		"fromApollo", summary.FromApollo,
		"localOverrides", summary.LocalOverrides)

	return summary, nil
}

func register(monitor Registrar, schemas SchemaConfigurer, name, url string, cfg config.SubgraphConfig) {
	cfg = cfg.WithDefaults()
	monitor.Register(name, url, cfg)
	schemas.SetSubgraphConfig(name, url, cfg)
}

func localFileNames(f *config.SubgraphsFile) map[string]struct{} {
	out := make(map[string]struct{})
	if f == nil {
		return out
	}
	for name := range f.Subgraphs {
		out[name] = struct{}{}
	}
	return out
}
