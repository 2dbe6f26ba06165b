package config

import "fmt"

// SubgraphConfig is the exhaustive set of per-subgraph options from
// spec.md §3, loaded from the subgraph config file and optionally merged
// with registry-discovered defaults.
type SubgraphConfig struct {
	ForceMock             bool              `yaml:"forceMock"`
	DisableMocking        bool              `yaml:"disableMocking"`
	UseLocalSchema        bool              `yaml:"useLocalSchema"`
	SchemaFile            string            `yaml:"schemaFile"`
	IntrospectionHeaders  map[string]string `yaml:"introspectionHeaders"`
	MaxRetries            int               `yaml:"maxRetries"`
	RetryDelayMs          int               `yaml:"retryDelayMs"`
	HealthCheckIntervalMs int               `yaml:"healthCheckIntervalMs"`
}

// Default returns the configuration a registry-discovered subgraph gets
// before any local override is applied. healthCheckIntervalMs is normally
// Env.SubgraphCheckInterval (SUBGRAPH_CHECK_INTERVAL_MS); a zero value
// falls back to DefaultHealthCheckIntervalMs.
func Default(healthCheckIntervalMs int) SubgraphConfig {
	if healthCheckIntervalMs == 0 {
		healthCheckIntervalMs = DefaultHealthCheckIntervalMs
	}
	return SubgraphConfig{
		MaxRetries:            DefaultMaxRetries,
		RetryDelayMs:          DefaultRetryDelayMs,
		HealthCheckIntervalMs: healthCheckIntervalMs,
	}
}

// SubgraphsFile is the shape of the subgraph config file: a mapping of
// subgraph name to its SubgraphConfig.
type SubgraphsFile struct {
	Subgraphs map[string]SubgraphConfig `yaml:"subgraphs"`
}

// Validate rejects the combinations spec.md §3/§4.6/§9 call out: mutually
// exclusive forceMock+disableMocking, out-of-range numerics, and the
// unresolvable ENABLE_PASSTHROUGH=false + disableMocking=true combination
// (spec.md §9's second open question — resolved here as a startup error).
func (c SubgraphConfig) Validate(name string, passthroughEnabled bool) error {
	if c.ForceMock && c.DisableMocking {
		return fmt.Errorf("subgraph %q: forceMock and disableMocking are mutually exclusive", name)
	}

	if c.DisableMocking && !passthroughEnabled {
		return fmt.Errorf("subgraph %q: disableMocking=true with ENABLE_PASSTHROUGH=false leaves no viable path", name)
	}

	if c.MaxRetries != 0 && (c.MaxRetries < 0 || c.MaxRetries > 10) {
		return fmt.Errorf("subgraph %q: maxRetries must be in [0,10], got %d", name, c.MaxRetries)
	}

	if c.RetryDelayMs != 0 && (c.RetryDelayMs < 100 || c.RetryDelayMs > 30_000) {
		return fmt.Errorf("subgraph %q: retryDelayMs must be in [100,30000], got %d", name, c.RetryDelayMs)
	}

	if c.HealthCheckIntervalMs != 0 && (c.HealthCheckIntervalMs < 5_000 || c.HealthCheckIntervalMs > 300_000) {
		return fmt.Errorf("subgraph %q: healthCheckIntervalMs must be in [5000,300000], got %d", name, c.HealthCheckIntervalMs)
	}

	return nil
}

// WithDefaults fills any zero-valued numeric field with its default,
// leaving explicit zero-ish booleans (false) untouched since false is
// itself the default for every bool field here.
func (c SubgraphConfig) WithDefaults() SubgraphConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelayMs == 0 {
		c.RetryDelayMs = DefaultRetryDelayMs
	}
	if c.HealthCheckIntervalMs == 0 {
		c.HealthCheckIntervalMs = DefaultHealthCheckIntervalMs
	}
	return c
}
