// Package health implements the per-subgraph health state machine of
// spec.md §4.2: it owns every subgraph's SubgraphState, schedules
// periodic probes, and drives the available/unavailable/mocking
// transitions on probe completion.
//
// The state table uses xsync.Map.Compute for single-writer-per-key
// updates, the same discipline Resinat-Resin/internal/routing/lease.go
// uses for its sticky-lease table: writers never read-then-write two
// separate map operations, so two concurrent probe completions for the
// same subgraph can never interleave into a torn state.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/n9te9/subgraph-proxy/internal/config"
)

// Status is a subgraph's routing status.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusMocking     Status = "mocking"
)

// SchemaSource records where a subgraph's schema is expected to come from,
// derived from its SubgraphConfig at registration time.
type SchemaSource string

const (
	SchemaSourceApolloRegistry     SchemaSource = "apollo-registry"
	SchemaSourceLocalIntrospection SchemaSource = "local-introspection"
	SchemaSourceUnknown            SchemaSource = "unknown"
)

// State is a read-only snapshot of a subgraph's health. Monitor hands out
// copies of State, never pointers into its internal table, so callers can
// never observe or cause a torn read.
type State struct {
	Name                string
	URL                 string
	Status              Status
	SchemaSource        SchemaSource
	IsHealthy           bool
	IsMocking           bool
	ConsecutiveFailures int
	LastHealthCheck     time.Time
	Config              config.SubgraphConfig
}

// entry is the mutable value stored per subgraph name. It embeds State
// plus the scheduling handle needed to cancel its probe timer.
type entry struct {
	State State
	timer *time.Timer
}

// Monitor owns every registered subgraph's State and the timers that
// drive periodic probing.
type Monitor struct {
	states     *xsync.Map[string, *entry]
	httpClient *http.Client
	log        *slog.Logger
	mu         sync.Mutex // guards timer scheduling against concurrent Shutdown
	shutdown   bool
}

// NewMonitor returns a Monitor that probes with the given HTTP client and
// logs background probe failures to logger. Pass nil for httpClient to get
// a bare http.Client (each probe still sets its own context deadline); nil
// logger falls back to slog.Default().
func NewMonitor(httpClient *http.Client, logger *slog.Logger) *Monitor {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		states:     xsync.NewMap[string, *entry](),
		httpClient: httpClient,
		log:        logger,
	}
}

// Register creates the initial state for name per spec.md §4.2: status
// unknown (mocking when force-mocked), not healthy, zero consecutive
// failures, isMocking iff forceMock or url is empty. If the subgraph isn't
// force-mocked and has a URL, a periodic probe is scheduled at
// cfg.HealthCheckIntervalMs.
func (m *Monitor) Register(name, url string, cfg config.SubgraphConfig) {
	cfg = cfg.WithDefaults()

	source := SchemaSourceApolloRegistry
	if cfg.UseLocalSchema {
		source = SchemaSourceLocalIntrospection
	}

	isMocking := cfg.ForceMock || url == ""
	status := StatusUnknown
	if cfg.ForceMock {
		status = StatusMocking
	}

	e := &entry{
		State: State{
			Name:         name,
			URL:          url,
			Status:       status,
			SchemaSource: source,
			IsHealthy:    false,
			IsMocking:    isMocking,
			Config:       cfg,
		},
	}

	m.states.Store(name, e)

	if !cfg.ForceMock && url != "" {
		m.scheduleProbe(name, time.Duration(cfg.HealthCheckIntervalMs)*time.Millisecond)
	}
}

// scheduleProbe arms (or re-arms) the timer that fires CheckHealth for
// name after d. A single timer per subgraph name keeps scheduled probes for
// the same subgraph from overlapping each other, per spec.md §5; a live
// CheckHealth call (the router's probe) can still run alongside one.
func (m *Monitor) scheduleProbe(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return
	}

	timer := time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		state, err := m.CheckHealth(ctx, name)
		if err != nil {
			m.log.Warn("subgraph probe failed to run", "subgraph", name, "error", err)
		} else if !state.IsHealthy {
			m.log.Warn("subgraph probe reported unhealthy", "subgraph", name, "status", state.Status, "consecutiveFailures", state.ConsecutiveFailures)
		}

		m.mu.Lock()
		shuttingDown := m.shutdown
		m.mu.Unlock()
		if shuttingDown {
			return
		}

		e, ok := m.states.Load(name)
		if !ok {
			return
		}
		m.scheduleProbe(name, time.Duration(e.State.Config.HealthCheckIntervalMs)*time.Millisecond)
	})

	e, ok := m.states.Load(name)
	if ok {
		e.timer = timer
	} else {
		timer.Stop()
	}
}

// Unregister stops name's probe timer, if any, and drops its state. It is
// used by the registry's re-registration step (spec.md §4.6): a local
// config override replaces a subgraph's state wholesale rather than
// patching it in place, so the old timer must not outlive the old config.
func (m *Monitor) Unregister(name string) {
	e, ok := m.states.LoadAndDelete(name)
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
}

// CheckHealth performs one probe against name's URL and applies the state
// machine transition in spec.md §4.2. It returns the resulting State, or
// an error if name was never registered.
func (m *Monitor) CheckHealth(ctx context.Context, name string) (State, error) {
	e, ok := m.states.Load(name)
	if !ok {
		return State{}, fmt.Errorf("subgraph %q is not registered", name)
	}

	healthy := m.probe(ctx, e.State.URL, e.State.Config.IntrospectionHeaders)
	return m.applyProbeResult(name, healthy)
}

// probe sends the typename health-check request spec.md §4.2 defines and
// reports whether it returned HTTP 200 within the timeout baked into ctx
// by the caller (health default 5s, see internal/config).
func (m *Monitor) probe(ctx context.Context, url string, headers map[string]string) bool {
	if url == "" {
		return false
	}

	body, err := json.Marshal(map[string]string{"query": "query { __typename }"})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-apollo-operation-name", "TypenameQuery")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// applyProbeResult mutates the stored state per the transition table in
// spec.md §4.2 and returns the new snapshot.
func (m *Monitor) applyProbeResult(name string, healthy bool) (State, error) {
	var result State
	var notRegistered bool

	m.states.Compute(name, func(e *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			notRegistered = true
			return e, xsync.CancelOp
		}

		s := e.State
		s.LastHealthCheck = time.Now()

		if healthy {
			s.IsHealthy = true
			s.ConsecutiveFailures = 0
			if s.Config.ForceMock {
				s.Status = StatusMocking
				s.IsMocking = true
			} else {
				s.Status = StatusAvailable
				s.IsMocking = false
			}
		} else {
			s.ConsecutiveFailures++
			s.IsHealthy = false

			switch {
			case s.Config.DisableMocking || s.ConsecutiveFailures < s.Config.MaxRetries:
				s.Status = StatusUnavailable
			case !s.Config.ForceMock:
				s.Status = StatusMocking
				s.IsMocking = true
			}
		}

		e.State = s
		result = s
		return e, xsync.UpdateOp
	})

	if notRegistered {
		return State{}, fmt.Errorf("subgraph %q is not registered", name)
	}
	return result, nil
}

// SetHealth is a manual override that goes through the same transition
// rules as a real probe result.
func (m *Monitor) SetHealth(name string, healthy bool) (State, error) {
	return m.applyProbeResult(name, healthy)
}

// GetState returns a read-only snapshot of name's current state.
func (m *Monitor) GetState(name string) (State, bool) {
	e, ok := m.states.Load(name)
	if !ok {
		return State{}, false
	}
	return e.State, true
}

// LookupByURL returns the name of the registered subgraph whose URL
// exactly matches url, per spec.md §4.1 step 1's URL-based fallback for
// requests whose subgraph name header is missing or unrecognized.
func (m *Monitor) LookupByURL(url string) (string, bool) {
	if url == "" {
		return "", false
	}

	var name string
	var found bool
	m.states.Range(func(n string, e *entry) bool {
		if e.State.URL == url {
			name, found = n, true
			return false
		}
		return true
	})
	return name, found
}

// GetAllStates returns a read-only snapshot of every registered subgraph.
func (m *Monitor) GetAllStates() []State {
	states := make([]State, 0, m.states.Size())
	m.states.Range(func(name string, e *entry) bool {
		states = append(states, e.State)
		return true
	})
	return states
}

// Shutdown cancels every scheduled probe timer and drops all state. It is
// safe to call once; a second call is a no-op.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	m.mu.Unlock()

	m.states.Range(func(name string, e *entry) bool {
		if e.timer != nil {
			e.timer.Stop()
		}
		m.states.Delete(name)
		return true
	})
}

