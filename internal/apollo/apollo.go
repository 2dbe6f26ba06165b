// Package apollo is a small client for the two registry operations
// spec.md §4.6 needs: listing the subgraphs registered under a graph, and
// fetching a named subgraph's SDL.
//
// Modeled on the teacher's gateway/schema_fetcher.go retry/timeout shape
// (fetchSDL/doFetchSDL), extended with the graph-list endpoint Apollo's
// own registry API exposes alongside SDL fetch.
package apollo

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Subgraph is one entry of the registry's subgraph list.
type Subgraph struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client talks to the Apollo schema registry for one graph/variant.
type Client struct {
	Endpoint   string
	APIKey     string
	GraphID    string
	Variant    string
	HTTPClient *http.Client
}

// New returns a Client. endpoint defaults to Apollo's public graphql
// registry endpoint when empty, which lets tests point this at an
// httptest.Server instead.
func New(endpoint, apiKey, graphID, variant string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		GraphID:    graphID,
		Variant:    variant,
		HTTPClient: httpClient,
	}
}

type listSubgraphsResponse struct {
	Data struct {
		Graph struct {
			Variant struct {
				Subgraphs []Subgraph `json:"subgraphs"`
			} `json:"variant"`
		} `json:"graph"`
	} `json:"data"`
}

// ListSubgraphs fetches the full subgraph list for the configured graph
// and variant. An empty list is a valid, non-error result (spec.md §4.6).
func (c *Client) ListSubgraphs(ctx context.Context) ([]Subgraph, error) {
	query := `query ListSubgraphs($graphId: ID!, $variant: String!) {
		graph(id: $graphId) {
			variant(name: $variant) {
				subgraphs { name url }
			}
		}
	}`

	body, err := json.Marshal(map[string]any{
		"query": query,
		"variables": map[string]any{
			"graphId": c.GraphID,
			"variant": c.Variant,
		},
	})
	if err != nil {
		return nil, err
	}

	var resp listSubgraphsResponse
	if err := c.post(ctx, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to list subgraphs: %w", err)
	}

	return resp.Data.Graph.Variant.Subgraphs, nil
}

type fetchSDLResponse struct {
	Data struct {
		Service struct {
			SDL string `json:"sdl"`
		} `json:"_service"`
	} `json:"data"`
}

// FetchSDL fetches a named subgraph's SDL from the registry (default
// schema source, spec.md §4.3 precedence case 4).
func (c *Client) FetchSDL(ctx context.Context, subgraphName string) (string, error) {
	query := `query SubgraphIntrospectQuery($name: ID!) { _service(name: $name) { sdl } }`

	body, err := json.Marshal(map[string]any{
		"query": query,
		"variables": map[string]any{
			"name": subgraphName,
		},
	})
	if err != nil {
		return "", err
	}

	var resp fetchSDLResponse
	if err := c.post(ctx, body, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch SDL for subgraph %q: %w", subgraphName, err)
	}

	if resp.Data.Service.SDL == "" {
		return "", fmt.Errorf("registry returned empty SDL for subgraph %q", subgraphName)
	}

	return resp.Data.Service.SDL, nil
}

func (c *Client) post(ctx context.Context, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from registry", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode registry response: %w", err)
	}

	return nil
}
