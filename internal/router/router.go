package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/n9te9/subgraph-proxy/internal/apperr"
	"github.com/n9te9/subgraph-proxy/internal/health"
	"github.com/n9te9/subgraph-proxy/internal/mockengine"
	"github.com/n9te9/subgraph-proxy/internal/passthrough"
	"github.com/n9te9/subgraph-proxy/internal/schemacache"
)

// Mode is the X-Proxy-Mode values spec.md §4.1 names.
type Mode string

const (
	ModePassthrough                    Mode = "passthrough"
	ModeMock                           Mode = "mock"
	ModeMockIntrospection              Mode = "mock-introspection"
	ModePassthroughIntrospectionCached Mode = "passthrough-introspection-cached"
)

// HealthSource is the Health Monitor surface the router needs.
type HealthSource interface {
	GetState(name string) (health.State, bool)
	CheckHealth(ctx context.Context, name string) (health.State, error)
	LookupByURL(url string) (string, bool)
}

// SchemaSource is the Schema Cache surface the router needs.
type SchemaSource interface {
	GetSchema(ctx context.Context, name string) (*schemacache.CachedSchemaEntry, error)
}

// Router is spec.md §4.1's Request Router.
type Router struct {
	health             HealthSource
	schemas            SchemaSource
	mock               *mockengine.Engine
	passthroughEngine  *passthrough.Engine
	passthroughEnabled bool
	mockOnError        bool
	healthTimeout      time.Duration
	log                *slog.Logger
}

// New returns a Router. passthroughEnabled mirrors ENABLE_PASSTHROUGH;
// mockOnError mirrors MOCK_ON_ERROR (spec.md §6): when a dispatched
// passthrough request fails with a connection-class error, the router
// falls back to the Mock Engine instead of surfacing the failure, unless
// the subgraph's own config disables mocking. healthTimeout bounds the
// live-probe step of the routing decision (spec.md §4.1 step 3).
func New(healthSource HealthSource, schemas SchemaSource, mock *mockengine.Engine, passthroughEngine *passthrough.Engine, passthroughEnabled, mockOnError bool, healthTimeout time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if healthTimeout <= 0 {
		healthTimeout = 5 * time.Second
	}
	return &Router{
		health:             healthSource,
		schemas:            schemas,
		mock:               mock,
		passthroughEngine:  passthroughEngine,
		passthroughEnabled: passthroughEnabled,
		mockOnError:        mockOnError,
		healthTimeout:      healthTimeout,
		log:                logger,
	}
}

// Result is what Handle hands back to the HTTP layer: the response body
// and status to write, plus the headers spec.md §4.1 requires.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handle runs the full Request Router decision for one decoded request
// and dispatches to the Mock or Passthrough Engine.
func (r *Router) Handle(ctx context.Context, req *DecodedRequest, incomingHeader http.Header) (*Result, error) {
	req = r.resolveSubgraph(req)
	state, known := r.health.GetState(req.SubgraphName)

	// Cheap checks first: only pay for a live upstream probe when passthrough
	// is even a candidate, sparing mock-only deployments and unknown
	// subgraphs the wasted network round trip.
	eligible := r.passthroughEnabled && known && !state.IsMocking
	if eligible && ShouldPassthrough(r.passthroughEnabled, known, state, state.IsHealthy || r.probe(ctx, req.SubgraphName)) {
		result, err := r.dispatchPassthrough(ctx, req, incomingHeader)
		if err == nil || !r.shouldFallBackToMock(state, err) {
			return result, err
		}
		r.log.Warn("passthrough failed, falling back to mock", "subgraph", req.SubgraphName, "error", err)
	}

	return r.dispatchMock(ctx, req)
}

// shouldFallBackToMock implements spec.md §6's MOCK_ON_ERROR: a
// connection-class passthrough failure is absorbed into a mock response
// instead of reaching the client, unless MOCK_ON_ERROR is off or the
// subgraph's own config has disableMocking set.
func (r *Router) shouldFallBackToMock(state health.State, err error) bool {
	if !r.mockOnError || state.Config.DisableMocking {
		return false
	}
	ae, ok := apperr.As(err)
	if !ok {
		return false
	}
	switch ae.Code {
	case apperr.GatewayTimeout, apperr.BadGateway, apperr.ServiceUnavailable, apperr.SubgraphUnavailable:
		return true
	default:
		return false
	}
}

// resolveSubgraph implements spec.md §4.1 step 1's URL-based fallback:
// when the x-subgraph-name header doesn't match a registered subgraph,
// but the decoded target URL does, the request is treated as addressed
// to that registered subgraph instead. A genuinely unknown name with no
// URL match passes through unchanged, letting dispatchMock's schema
// lookup fail with the real 404 SCHEMA_NOT_FOUND.
func (r *Router) resolveSubgraph(req *DecodedRequest) *DecodedRequest {
	if _, known := r.health.GetState(req.SubgraphName); known {
		return req
	}

	name, ok := r.health.LookupByURL(req.TargetURL)
	if !ok || name == req.SubgraphName {
		return req
	}

	resolved := *req
	resolved.SubgraphName = name
	return &resolved
}

// probe runs the live health check spec.md §4.1 step 3(c) calls for,
// bounded by the router's health timeout, against the URL the subgraph
// was registered with. A probe error (including the subgraph not being
// registered yet) is treated as "not healthy right now" rather than
// failing the request outright.
func (r *Router) probe(ctx context.Context, name string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()

	state, err := r.health.CheckHealth(probeCtx, name)
	if err != nil {
		return false
	}
	return state.IsHealthy
}

// ShouldPassthrough implements spec.md §4.1 step 3's exact boolean:
// passthrough globally enabled, the subgraph is not forced/collapsed into
// mocking, and either a live probe succeeded or the cached isHealthy flag
// is already true.
func ShouldPassthrough(passthroughEnabled, known bool, state health.State, liveProbeHealthy bool) bool {
	if !passthroughEnabled || !known {
		return false
	}
	if state.IsMocking {
		return false
	}
	return liveProbeHealthy || state.IsHealthy
}

func (r *Router) dispatchPassthrough(ctx context.Context, req *DecodedRequest, incomingHeader http.Header) (*Result, error) {
	result, err := r.passthroughEngine.Forward(passthrough.Request{
		Ctx:          ctx,
		TargetURL:    req.TargetURL,
		SubgraphName: req.SubgraphName,
		Body:         req.RawBody,
		Header:       incomingHeader,
	})
	if err != nil {
		return nil, err
	}

	return (*Result)(result), nil
}

func (r *Router) dispatchMock(ctx context.Context, req *DecodedRequest) (*Result, error) {
	entry, err := r.schemas.GetSchema(ctx, req.SubgraphName)
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		return nil, apperr.Wrap(apperr.SchemaFetchFailed, "failed to load schema for mock generation", err).
			WithExtension("subgraph", req.SubgraphName)
	}

	data, err := r.mock.Execute(mockengine.Request{
		SubgraphName:  req.SubgraphName,
		Schema:        entry.Schema,
		Entities:      entry.Entities,
		Query:         req.Body.Query,
		Variables:     req.Body.Variables,
		OperationName: req.Body.OperationName,
	})
	if err != nil {
		return nil, err
	}

	body, err := marshalData(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalServerError, "failed to marshal mock response", err)
	}

	mode := ModeMock
	if isIntrospectionRequest(req.Body.Query) {
		mode = ModeMockIntrospection
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Proxy-Mode", string(mode))
	header.Set("X-Mock-Subgraph", req.SubgraphName)

	return &Result{StatusCode: http.StatusOK, Header: header, Body: body}, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	return json.Marshal(map[string]any{"data": data})
}

func isIntrospectionRequest(query string) bool {
	return schemacache.IsIntrospectionQuery(query)
}
