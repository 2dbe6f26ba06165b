// Package gateway holds what survives of the teacher's federation gateway
// once cross-subgraph composition, planning, and execution are out of
// scope: the outbound HTTP client construction every subgraph-facing
// component in this proxy shares.
package gateway

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient builds the *http.Client the Health Monitor's probes and the
// Apollo registry client share: a fixed timeout plus, when tracing is
// enabled, an otelhttp-wrapped transport so outbound spans get reported the
// same way regardless of which component issued the call. The Passthrough
// Engine builds its own client (it needs its own CheckRedirect policy), so
// this constructor is not universal — it covers the two callers whose
// outbound traffic has no policy of its own to diverge on.
func NewHTTPClient(timeout time.Duration, enableTracing bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if enableTracing {
		client.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return client
}
