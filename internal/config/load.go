package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadSubgraphsFile reads and validates the subgraph config file at path.
// A missing file is not an error (spec.md §4.6: "Absence of the file is
// not an error") and returns an empty SubgraphsFile.
func LoadSubgraphsFile(path string, passthroughEnabled bool) (*SubgraphsFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SubgraphsFile{Subgraphs: map[string]SubgraphConfig{}}, nil
		}
		return nil, fmt.Errorf("failed to read subgraph config file %s: %w", path, err)
	}

	var file SubgraphsFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subgraph config file %s: %w", path, err)
	}

	if file.Subgraphs == nil {
		file.Subgraphs = map[string]SubgraphConfig{}
	}

	for name, cfg := range file.Subgraphs {
		if err := cfg.Validate(name, passthroughEnabled); err != nil {
			return nil, err
		}
	}

	return &file, nil
}

// ResolverMap is a raw, untyped resolver tree as loaded from a mock
// resolvers file: field name to either a literal value or a nested map.
// internal/mockengine interprets its shape; config only decodes YAML.
type ResolverMap map[string]any

// MockResolversFile is the shape of the mock resolvers file: an optional
// subgraph-agnostic "_globals" map plus one map per subgraph name.
type MockResolversFile map[string]ResolverMap

// LoadMockResolversFile reads the mock resolvers file at path. A missing
// file is not an error; it simply yields no custom resolvers, matching
// spec.md §4.4's "If parsing or loading fails, proceed with defaults."
func LoadMockResolversFile(path string) (MockResolversFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MockResolversFile{}, nil
		}
		return nil, fmt.Errorf("failed to read mock resolvers file %s: %w", path, err)
	}

	var file MockResolversFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mock resolvers file %s: %w", path, err)
	}

	return file, nil
}
