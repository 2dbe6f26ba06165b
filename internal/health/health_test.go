package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/n9te9/subgraph-proxy/internal/config"
	"github.com/n9te9/subgraph-proxy/internal/health"
)

func TestRegisterForceMockStartsMocking(t *testing.T) {
	m := health.NewMonitor(nil, nil)
	m.Register("reviews", "http://reviews.example.com/graphql", config.SubgraphConfig{ForceMock: true}.WithDefaults())

	state, ok := m.GetState("reviews")
	if !ok {
		t.Fatal("expected reviews to be registered")
	}
	if state.Status != health.StatusMocking || !state.IsMocking {
		t.Fatalf("expected forceMock subgraph to start mocking, got %+v", state)
	}
}

func TestCheckHealthSuccessTransitionsToAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := health.NewMonitor(srv.Client(), nil)
	m.Register("products", srv.URL, config.SubgraphConfig{HealthCheckIntervalMs: 300_000}.WithDefaults())

	state, err := m.CheckHealth(context.Background(), "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != health.StatusAvailable || !state.IsHealthy || state.ConsecutiveFailures != 0 {
		t.Fatalf("expected available/healthy state, got %+v", state)
	}
}

func TestConsecutiveFailuresTransitionToMocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := health.NewMonitor(srv.Client(), nil)
	cfg := config.SubgraphConfig{MaxRetries: 3, HealthCheckIntervalMs: 300_000}.WithDefaults()
	m.Register("products", srv.URL, cfg)

	var last health.State
	var err error
	for i := 0; i < 3; i++ {
		last, err = m.CheckHealth(context.Background(), "products")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if last.Status != health.StatusMocking || !last.IsMocking {
		t.Fatalf("expected mocking after %d consecutive failures, got %+v", 3, last)
	}

	// A freshly registered subgraph whose first probe succeeds is available
	// with zero consecutive failures.
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	m2 := health.NewMonitor(healthy.Client(), nil)
	m2.Register("products", healthy.URL, cfg)
	reset, err := m2.CheckHealth(context.Background(), "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reset.Status != health.StatusAvailable || reset.ConsecutiveFailures != 0 {
		t.Fatalf("expected reset to available, got %+v", reset)
	}
}

func TestDisableMockingNeverTransitionsToMocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := health.NewMonitor(srv.Client(), nil)
	cfg := config.SubgraphConfig{DisableMocking: true, MaxRetries: 1, HealthCheckIntervalMs: 300_000}.WithDefaults()
	m.Register("products", srv.URL, cfg)

	state, err := m.CheckHealth(context.Background(), "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != health.StatusUnavailable || state.IsMocking {
		t.Fatalf("expected unavailable (never mocking) with disableMocking, got %+v", state)
	}
}

func TestCheckHealthNotRegistered(t *testing.T) {
	m := health.NewMonitor(nil, nil)
	if _, err := m.CheckHealth(context.Background(), "unknown"); err == nil {
		t.Fatal("expected error for unregistered subgraph")
	}
}

func TestSetHealthFollowsSameTransitionRules(t *testing.T) {
	m := health.NewMonitor(nil, nil)
	m.Register("products", "http://products.example.com/graphql", config.SubgraphConfig{}.WithDefaults())

	state, err := m.SetHealth("products", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != health.StatusAvailable {
		t.Fatalf("expected available, got %+v", state)
	}
}

func TestSetHealthNeverClearsMockingForForceMockedSubgraph(t *testing.T) {
	m := health.NewMonitor(nil, nil)
	m.Register("reviews", "http://reviews.example.com/graphql", config.SubgraphConfig{ForceMock: true}.WithDefaults())

	state, err := m.SetHealth("reviews", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != health.StatusMocking || !state.IsMocking {
		t.Fatalf("expected forceMock subgraph to stay mocking on a manual healthy override, got %+v", state)
	}
}

func TestShutdownCancelsTimersAndDropsState(t *testing.T) {
	m := health.NewMonitor(nil, nil)
	m.Register("products", "http://products.example.com/graphql", config.SubgraphConfig{HealthCheckIntervalMs: 5_000}.WithDefaults())

	m.Shutdown()

	if _, ok := m.GetState("products"); ok {
		t.Fatal("expected state to be dropped after Shutdown")
	}
	if got := m.GetAllStates(); len(got) != 0 {
		t.Fatalf("expected no states after Shutdown, got %d", len(got))
	}

	// Shutdown is idempotent.
	m.Shutdown()
}

func TestGetAllStatesReturnsSnapshot(t *testing.T) {
	m := health.NewMonitor(nil, nil)
	m.Register("a", "http://a.example.com", config.SubgraphConfig{HealthCheckIntervalMs: 300_000}.WithDefaults())
	m.Register("b", "http://b.example.com", config.SubgraphConfig{HealthCheckIntervalMs: 300_000}.WithDefaults())

	states := m.GetAllStates()
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	m.Shutdown()
}
