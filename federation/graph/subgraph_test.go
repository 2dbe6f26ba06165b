package graph_test

import (
	"testing"

	"github.com/n9te9/subgraph-proxy/federation/graph"
)

func TestParseExtractsKeyFields(t *testing.T) {
	sdl := `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
			price: Float!
		}

		type Query {
			products: [Product!]!
		}
	`

	s, err := graph.Parse("products", []byte(sdl))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if s.Name != "products" {
		t.Errorf("expected name products, got %s", s.Name)
	}

	keys := s.KeyFields("Product")
	if len(keys) != 1 || keys[0] != "id" {
		t.Errorf("expected key fields [id], got %v", keys)
	}

	if keys := s.KeyFields("Query"); keys != nil {
		t.Errorf("expected no key fields for Query, got %v", keys)
	}

	if td := s.TypeDefinition("Product"); td == nil {
		t.Error("expected to find Product type definition")
	}
}

func TestParseMultiFieldKey(t *testing.T) {
	sdl := `
		type Review @key(fields: "productId authorId") {
			productId: ID!
			authorId: ID!
			rating: Int!
		}
	`

	s, err := graph.Parse("reviews", []byte(sdl))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	keys := s.KeyFields("Review")
	if len(keys) != 2 || keys[0] != "productId" || keys[1] != "authorId" {
		t.Errorf("expected [productId authorId], got %v", keys)
	}
}

func TestParseInvalidSDL(t *testing.T) {
	if _, err := graph.Parse("broken", []byte("type {{{")); err == nil {
		t.Fatal("expected parse error for malformed SDL")
	}
}

func TestParseEnumAndScalarIndexes(t *testing.T) {
	sdl := `
		scalar DateTime

		enum Status {
			ACTIVE
			INACTIVE
		}

		type Product {
			id: ID!
			status: Status!
			createdAt: DateTime!
		}
	`

	s, err := graph.Parse("products", []byte(sdl))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	values := s.EnumValues("Status")
	if len(values) != 2 || values[0] != "ACTIVE" || values[1] != "INACTIVE" {
		t.Errorf("expected [ACTIVE INACTIVE], got %v", values)
	}

	if !s.IsCustomScalar("DateTime") {
		t.Error("expected DateTime to be a custom scalar")
	}
	if s.IsCustomScalar("String") {
		t.Error("expected built-in String not to be a custom scalar")
	}
}
