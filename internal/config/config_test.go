package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/n9te9/subgraph-proxy/internal/config"
)

func TestSubgraphConfigValidateRejectsForceMockAndDisableMocking(t *testing.T) {
	c := config.SubgraphConfig{ForceMock: true, DisableMocking: true}
	if err := c.Validate("products", true); err == nil {
		t.Fatal("expected error for forceMock+disableMocking, got nil")
	}
}

func TestSubgraphConfigValidateRejectsDisableMockingWithoutPassthrough(t *testing.T) {
	c := config.SubgraphConfig{DisableMocking: true}
	if err := c.Validate("products", false); err == nil {
		t.Fatal("expected error for disableMocking with passthrough disabled, got nil")
	}
}

func TestSubgraphConfigValidateRejectsOutOfRangeNumerics(t *testing.T) {
	cases := []config.SubgraphConfig{
		{MaxRetries: 11},
		{MaxRetries: -1},
		{RetryDelayMs: 50},
		{HealthCheckIntervalMs: 1000},
	}

	for _, c := range cases {
		if err := c.Validate("products", true); err == nil {
			t.Fatalf("expected error for %+v, got nil", c)
		}
	}
}

func TestSubgraphConfigWithDefaults(t *testing.T) {
	c := config.SubgraphConfig{}.WithDefaults()
	if c.MaxRetries != config.DefaultMaxRetries {
		t.Errorf("expected default maxRetries %d, got %d", config.DefaultMaxRetries, c.MaxRetries)
	}
	if c.RetryDelayMs != config.DefaultRetryDelayMs {
		t.Errorf("expected default retryDelayMs %d, got %d", config.DefaultRetryDelayMs, c.RetryDelayMs)
	}
}

func TestLoadSubgraphsFileMissingIsNotError(t *testing.T) {
	file, err := config.LoadSubgraphsFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"), true)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(file.Subgraphs) != 0 {
		t.Fatalf("expected empty subgraphs, got %v", file.Subgraphs)
	}
}

func TestLoadSubgraphsFileParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subgraphs.yaml")
	content := `
subgraphs:
  products:
    useLocalSchema: true
    schemaFile: products.graphql
    maxRetries: 5
  reviews:
    forceMock: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := config.LoadSubgraphsFile(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	products, ok := file.Subgraphs["products"]
	if !ok {
		t.Fatal("expected products subgraph to be present")
	}
	if products.SchemaFile != "products.graphql" || products.MaxRetries != 5 {
		t.Errorf("unexpected products config: %+v", products)
	}

	if !file.Subgraphs["reviews"].ForceMock {
		t.Error("expected reviews.forceMock to be true")
	}
}

func TestLoadMockResolversFileMissingIsNotError(t *testing.T) {
	file, err := config.LoadMockResolversFile(filepath.Join(t.TempDir(), "mocks.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(file) != 0 {
		t.Fatalf("expected empty resolvers, got %v", file)
	}
}
