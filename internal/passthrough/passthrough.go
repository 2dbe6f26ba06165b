// Package passthrough implements spec.md §4.5's Passthrough Engine:
// forward a request body to a healthy subgraph and relay its response,
// falling back to a cached SDL when the federation introspection query
// hits a connection-class failure.
//
// Header hygiene and the hop-by-hop header list are grounded on
// other_examples/a6952a32_felipecampolina-FCReverseProxy's
// directRequest/sanitizeResponseHeaders; the *http.Client timeout/
// CheckRedirect idiom follows the teacher's own httpClient construction in
// gateway/gateway.go.
package passthrough

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/n9te9/subgraph-proxy/internal/apperr"
	"github.com/n9te9/subgraph-proxy/internal/schemacache"
)

// DefaultTimeout is spec.md §4.5's default upstream call timeout.
const DefaultTimeout = 30 * time.Second

const maxRedirects = 5

// SchemaSource is the introspection-fallback dependency: *schemacache.Cache
// satisfies it.
type SchemaSource interface {
	GetSchema(ctx context.Context, name string) (*schemacache.CachedSchemaEntry, error)
}

// Engine is the Passthrough Engine.
type Engine struct {
	client  *http.Client
	schemas SchemaSource
	log     *slog.Logger
}

// New returns an Engine with the given upstream-call timeout (DefaultTimeout
// if zero or negative) and introspection-fallback schema source (nil
// disables the fallback).
func New(timeout time.Duration, schemas SchemaSource, logger *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		schemas: schemas,
		log:     logger,
	}
}

// Request is one forwarded call.
type Request struct {
	Ctx          context.Context
	TargetURL    string
	SubgraphName string
	Body         []byte
	Header       http.Header
}

// Result is what the caller relays back to its own client: the upstream
// response headers minus hop-by-hop headers, over which the caller then
// sets the proxy's own mode/target headers.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forward POSTs req.Body to req.TargetURL and relays the response. Any
// response status is accepted and passed through unchanged; only a
// connection-class failure (the upstream was never reached) produces an
// error, and even then the federation introspection query gets one more
// chance via the cached schema before failing.
func (e *Engine) Forward(req Request) (*Result, error) {
	upstreamReq, err := http.NewRequestWithContext(req.Ctx, http.MethodPost, req.TargetURL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalServerError, "failed to build upstream request", err)
	}
	upstreamReq.Header = sanitizeRequestHeaders(req.Header)
	if upstreamReq.Header.Get("Content-Type") == "" {
		upstreamReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(upstreamReq)
	if err != nil {
		return e.handleTransportFailure(req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalServerError, "failed to read upstream response", err)
	}

	header := sanitizeResponseHeaders(resp.Header)
	header.Set("X-Proxy-Mode", "passthrough")
	header.Set("X-Proxy-Target", req.TargetURL)

	return &Result{StatusCode: resp.StatusCode, Header: header, Body: body}, nil
}

func (e *Engine) handleTransportFailure(req Request, transportErr error) (*Result, error) {
	if fallback, ok := e.introspectionFallback(req); ok {
		return fallback, nil
	}

	e.log.Warn("passthrough upstream call failed",
		"subgraph", req.SubgraphName, "target", req.TargetURL, "error", transportErr)
	return nil, classifyTransportError(transportErr)
}

// introspectionFallback implements spec.md §4.1/§4.5's cache fallback:
// on a connection-class failure for the federation introspection query,
// answer from the Schema Cache instead of failing the request.
func (e *Engine) introspectionFallback(req Request) (*Result, bool) {
	if e.schemas == nil || !isIntrospectionRequestBody(req.Body) {
		return nil, false
	}

	entry, err := e.schemas.GetSchema(req.Ctx, req.SubgraphName)
	if err != nil {
		return nil, false
	}

	body, err := json.Marshal(map[string]any{
		"data": map[string]any{"_service": map[string]any{"sdl": entry.SDL}},
	})
	if err != nil {
		return nil, false
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("X-Proxy-Mode", "passthrough-introspection-cached")
	header.Set("X-Proxy-Target", req.TargetURL)
	header.Set("X-Cache-Fallback", "true")

	return &Result{StatusCode: http.StatusOK, Header: header, Body: body}, true
}

func isIntrospectionRequestBody(body []byte) bool {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return schemacache.IsIntrospectionQuery(payload.Query)
}
