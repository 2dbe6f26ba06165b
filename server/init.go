package server

import (
	"fmt"
	"os"
)

const starterSubgraphsYAML = `# subgraphs.yaml — per-subgraph overrides merged over the Apollo registry
# listing (spec.md §4.6 case 2/3). Delete a subgraph's entry to let the
# registry supply its URL and use every default.
subgraphs:
  example:
    forceMock: false
    disableMocking: false
    useLocalSchema: false
    # schemaFile: example.graphql
    maxRetries: 3
    retryDelayMs: 500
    healthCheckIntervalMs: 30000
`

const starterMocksYAML = `# mocks.yaml — mock resolver layers (spec.md §4.4). "_globals" applies to
# every subgraph unless a subgraph-named layer defines the same type; a
# layer's entry for a type replaces the whole type, not single fields.
_globals:
  Product:
    id: "00000000-0000-0000-0000-000000000000"

example: {}
`

// Init scaffolds a new gateway project in the current directory: a
// starter subgraphs.yaml and mocks.yaml, left untouched if either already
// exists so re-running init never clobbers real configuration.
func Init() error {
	if err := writeIfAbsent("subgraphs.yaml", starterSubgraphsYAML); err != nil {
		return err
	}
	if err := writeIfAbsent("mocks.yaml", starterMocksYAML); err != nil {
		return err
	}
	return nil
}

func writeIfAbsent(path, contents string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists, skipping\n", path)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
