package apollo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/n9te9/subgraph-proxy/internal/apollo"
)

func TestListSubgraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"graph":{"variant":{"subgraphs":[{"name":"products","url":"http://products.example.com/graphql"}]}}}}`))
	}))
	defer srv.Close()

	c := apollo.New(srv.URL, "key", "graph-id", "current", nil)
	subgraphs, err := c.ListSubgraphs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subgraphs) != 1 || subgraphs[0].Name != "products" {
		t.Fatalf("unexpected subgraphs: %+v", subgraphs)
	}
}

func TestListSubgraphsEmptyIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"graph":{"variant":{"subgraphs":[]}}}}`))
	}))
	defer srv.Close()

	c := apollo.New(srv.URL, "", "graph-id", "current", nil)
	subgraphs, err := c.ListSubgraphs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subgraphs) != 0 {
		t.Fatalf("expected empty list, got %+v", subgraphs)
	}
}

func TestFetchSDL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"_service":{"sdl":"type Query { hello: String }"}}}`))
	}))
	defer srv.Close()

	c := apollo.New(srv.URL, "", "graph-id", "current", nil)
	sdl, err := c.FetchSDL(context.Background(), "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sdl != "type Query { hello: String }" {
		t.Fatalf("unexpected SDL: %q", sdl)
	}
}

func TestFetchSDLEmptyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"_service":{"sdl":""}}}`))
	}))
	defer srv.Close()

	c := apollo.New(srv.URL, "", "graph-id", "current", nil)
	if _, err := c.FetchSDL(context.Background(), "products"); err == nil {
		t.Fatal("expected error for empty SDL")
	}
}

func TestFetchSDLNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := apollo.New(srv.URL, "", "graph-id", "current", nil)
	if _, err := c.FetchSDL(context.Background(), "products"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
