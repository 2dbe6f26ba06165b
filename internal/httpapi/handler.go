// Package httpapi is the proxy's HTTP surface: the fixed operational
// endpoints of spec.md §6 plus the GraphQL proxy endpoint dispatched
// through internal/router. It supersedes the teacher's gateway.ServeHTTP,
// which answered only one POST route with no operational endpoints at
// all.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/n9te9/subgraph-proxy/internal/apperr"
	"github.com/n9te9/subgraph-proxy/internal/health"
	"github.com/n9te9/subgraph-proxy/internal/router"
	"github.com/n9te9/subgraph-proxy/internal/schemacache"
)

// Info is the static service identity printed by GET / and folded into
// telemetry resource attributes.
type Info struct {
	ServiceName string
	Version     string
}

// Handler is the composed http.Handler for the whole service.
type Handler struct {
	info      Info
	router    *router.Router
	health    *health.Monitor
	schemas   *schemacache.Cache
	startedAt time.Time
	log       *slog.Logger

	shuttingDown atomic.Bool
}

// New returns the composed Handler. Call StartShutdown before draining the
// server so GET /ready starts reporting 503 ahead of the listener closing.
func New(info Info, r *router.Router, monitor *health.Monitor, schemas *schemacache.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		info:      info,
		router:    r,
		health:    monitor,
		schemas:   schemas,
		startedAt: time.Now(),
		log:       logger,
	}
}

// StartShutdown marks the service as shutting down for GET /ready.
func (h *Handler) StartShutdown() {
	h.shuttingDown.Store(true)
}

var _ http.Handler = (*Handler)(nil)

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		h.serveRoot(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/live":
		h.serveLive(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/ready":
		h.serveReady(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		h.serveHealth(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/status":
		h.serveStatus(w, r)
	case r.Method == http.MethodPost:
		h.serveProxy(w, r)
	default:
		apperr.Respond(w, apperr.New(apperr.InvalidGraphQLRequest, "unsupported method or path"))
	}
}

func (h *Handler) serveRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   h.info.ServiceName,
		"status":    "ok",
		"version":   h.info.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}

func (h *Handler) serveReady(w http.ResponseWriter, r *http.Request) {
	if h.shuttingDown.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// componentStatus is one entry of GET /health's checks map.
type componentStatus struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LastCheck time.Time      `json:"lastCheck"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// severity orders healthy < degraded < unhealthy so the worst check wins.
func severity(status string) int {
	switch status {
	case "unhealthy":
		return 2
	case "degraded":
		return 1
	default:
		return 0
	}
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]componentStatus{}
	worst := 0

	states := h.health.GetAllStates()
	healthyCount, mockingCount, unavailableCount := 0, 0, 0
	for _, s := range states {
		switch s.Status {
		case health.StatusAvailable:
			healthyCount++
		case health.StatusMocking:
			mockingCount++
		case health.StatusUnavailable:
			unavailableCount++
		}
	}

	subgraphsStatus := "healthy"
	if len(states) > 0 && unavailableCount == len(states) {
		subgraphsStatus = "unhealthy"
	} else if unavailableCount > 0 {
		subgraphsStatus = "degraded"
	}
	checks["subgraphs"] = componentStatus{
		Status:    subgraphsStatus,
		LastCheck: time.Now().UTC(),
		Metrics: map[string]any{
			"total":       len(states),
			"healthy":     healthyCount,
			"mocking":     mockingCount,
			"unavailable": unavailableCount,
		},
	}
	if sev := severity(subgraphsStatus); sev > worst {
		worst = sev
	}

	cached := 0
	for _, s := range states {
		if h.schemas.Has(s.Name) {
			cached++
		}
	}
	schemaCacheStatus := "healthy"
	if cached < len(states) {
		schemaCacheStatus = "degraded"
	}
	checks["schemaCache"] = componentStatus{
		Status:    schemaCacheStatus,
		LastCheck: time.Now().UTC(),
		Metrics: map[string]any{
			"cached": cached,
			"total":  len(states),
		},
	}
	if sev := severity(schemaCacheStatus); sev > worst {
		worst = sev
	}

	overall := []string{"healthy", "degraded", "unhealthy"}[worst]
	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startedAt).Seconds(),
		"checks":    checks,
	})
}

func (h *Handler) serveStatus(w http.ResponseWriter, r *http.Request) {
	includeConfig := r.Header.Get("x-debug-config") != "" || r.URL.Query().Get("config") == "1"

	states := h.health.GetAllStates()
	healthy, mocking := 0, 0
	subgraphs := make([]map[string]any, 0, len(states))
	for _, s := range states {
		if s.IsHealthy {
			healthy++
		}
		if s.IsMocking {
			mocking++
		}

		entry := map[string]any{
			"name":                s.Name,
			"url":                 s.URL,
			"status":              string(s.Status),
			"isHealthy":           s.IsHealthy,
			"isMocking":           s.IsMocking,
			"schemaSource":        string(s.SchemaSource),
			"lastCheck":           s.LastHealthCheck,
			"consecutiveFailures": s.ConsecutiveFailures,
		}
		if includeConfig {
			entry["config"] = s.Config
		}
		subgraphs = append(subgraphs, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totalSubgraphs":   len(states),
		"healthySubgraphs": healthy,
		"mockingSubgraphs": mocking,
		"subgraphs":        subgraphs,
	})
}

// serveProxy implements the POST /:encodedUrl route: everything past the
// leading slash is the percent-encoded target URL router.Decode expects.
func (h *Handler) serveProxy(w http.ResponseWriter, r *http.Request) {
	encoded := strings.TrimPrefix(r.URL.Path, "/")
	if encoded == "" {
		apperr.Respond(w, apperr.New(apperr.InvalidURL, "missing target URL path segment"))
		return
	}

	var rawBody []byte
	if r.Body != nil {
		var err error
		rawBody, err = io.ReadAll(r.Body)
		if err != nil {
			apperr.Respond(w, apperr.Wrap(apperr.InvalidGraphQLRequest, "failed to read request body", err))
			return
		}
	}

	req, err := router.Decode(encoded, r.Header.Get("x-subgraph-name"), rawBody)
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			apperr.Respond(w, ae)
			return
		}
		apperr.Respond(w, apperr.Wrap(apperr.InternalServerError, "", err))
		return
	}

	result, err := h.router.Handle(r.Context(), req, r.Header)
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			h.log.Warn("request failed", "subgraph", req.SubgraphName, "code", ae.Code, "error", ae.Message)
			apperr.Respond(w, ae)
			return
		}
		h.log.Error("request failed with unclassified error", "subgraph", req.SubgraphName, "error", err)
		apperr.Respond(w, apperr.Wrap(apperr.InternalServerError, "", err))
		return
	}

	for k, vs := range result.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Proxy-Target", req.TargetURL)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(result.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

