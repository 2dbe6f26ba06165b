package schemacache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// FederationIntrospectionQuery is the well-known query routers use to
// discover a subgraph's SDL, and the one the request router recognizes to
// short-circuit a client's own introspection request (spec.md §4.1).
const FederationIntrospectionQuery = `query SubgraphIntrospectQuery { _service { sdl } }`

// introspectionAttemptTimeout is the fixed per-attempt timeout spec.md
// §4.3 specifies for the introspection protocol, independent of any
// caller-supplied context deadline.
const introspectionAttemptTimeout = 10 * time.Second

type introspectionResponse struct {
	Data struct {
		Service struct {
			SDL string `json:"sdl"`
		} `json:"_service"`
	} `json:"data"`
}

// Introspect fetches a subgraph's SDL directly from its endpoint via the
// federation introspection query, per spec.md §4.3: retries up to
// maxRetries+1 total attempts with retryDelayMs between attempts, each
// attempt bounded by a fixed 10s timeout regardless of ctx's own deadline.
//
// Adapted from the teacher's gateway/schema_fetcher.go fetchSDL/doFetchSDL,
// which retried a similar `{_service{sdl}}` POST a fixed number of times;
// this version adds the exact retry-count/delay/timeout numbers and error
// classification spec.md §4.3 requires, which the teacher's version did
// not have.
func Introspect(ctx context.Context, url string, headers map[string]string, maxRetries int, retryDelayMs int) (string, error) {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(retryDelayMs) * time.Millisecond

	body, err := json.Marshal(map[string]string{"query": FederationIntrospectionQuery})
	if err != nil {
		return "", err
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		sdl, err := doIntrospect(ctx, url, headers, body)
		if err == nil {
			return sdl, nil
		}
		lastErr = err

		if i < attempts-1 && delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return "", fmt.Errorf("introspection of %s failed after %d attempt(s): %w", url, attempts, lastErr)
}

func doIntrospect(ctx context.Context, url string, headers map[string]string, body []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, introspectionAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", classifyIntrospectError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var parsed introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode introspection response: %w", err)
	}

	if parsed.Data.Service.SDL == "" {
		return "", errors.New("empty SDL in introspection response")
	}

	return parsed.Data.Service.SDL, nil
}

// classifyIntrospectError maps a transport-level error to the message
// shapes spec.md §4.3 names: connection refused, timeout, or a generic
// passthrough of the underlying error.
func classifyIntrospectError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timeout after %d ms", introspectionAttemptTimeout.Milliseconds())
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Err != nil && isConnRefused(opErr.Err) {
			return errors.New("connection refused")
		}
	}

	return err
}

// IsIntrospectionQuery reports whether query, after stripping comments and
// whitespace and lowercasing, is the federation introspection query
// (spec.md §4.1). Both the request router's short-circuit and the Mock
// and Passthrough Engines' fallback paths share this one test.
func IsIntrospectionQuery(query string) bool {
	return normalizeQuery(query) == normalizeQuery(FederationIntrospectionQuery)
}

func normalizeQuery(q string) string {
	var b strings.Builder
	for _, line := range strings.Split(q, "\n") {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		b.WriteString(line)
		b.WriteByte(' ')
	}
	return strings.ToLower(strings.Join(strings.Fields(b.String()), ""))
}

func isConnRefused(err error) bool {
	var sysErr interface{ Error() string }
	if errors.As(err, &sysErr) {
		return bytes.Contains([]byte(sysErr.Error()), []byte("connection refused"))
	}
	return false
}
