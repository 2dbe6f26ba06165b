// Package mockengine implements spec.md §4.4's Mock Engine: it executes a
// parsed GraphQL operation against a subgraph's cached schema using a
// layered resolver map instead of contacting the real upstream.
//
// Grounded on the teacher's gateway/gateway.go, which already parsed
// incoming requests with graphql-parser's lexer/parser and walked the
// resulting ast.Document for its own (now-removed) field-accessibility
// validation; this package reuses that same parse step and selection-set
// walk, but to generate values instead of to validate them.
package mockengine

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/n9te9/subgraph-proxy/federation/graph"
	"github.com/n9te9/subgraph-proxy/internal/apperr"
	"github.com/n9te9/subgraph-proxy/internal/config"
)

// Request is everything the Mock Engine needs to synthesize a response
// for one GraphQL operation against one subgraph.
type Request struct {
	SubgraphName  string
	Schema        *graph.Schema
	Entities      *graph.SubGraphV2 // optional; nil falls back to Schema.KeyFields for entity ids
	Query         string
	Variables     map[string]any
	OperationName string
	Override      config.ResolverMap // per-call resolver override, highest precedence
}

// Engine is the Mock Engine.
type Engine struct {
	loader ResolverSourceLoader
	log    *slog.Logger
}

func New(loader ResolverSourceLoader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{loader: loader, log: logger}
}

// Execute runs req and returns the response's "data" payload, or an
// *apperr.Error coded per spec.md §4.4's error table
// (GRAPHQL_PARSE_ERROR / GRAPHQL_VALIDATION_ERROR / SCHEMA_ERROR /
// MOCK_GENERATION_ERROR / SCHEMA_NOT_FOUND / MISSING_QUERY).
func (e *Engine) Execute(req Request) (map[string]any, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperr.New(apperr.MissingQuery, "query must be a non-empty string")
	}
	if req.Schema == nil {
		return nil, apperr.New(apperr.SchemaNotFound, "no schema available for subgraph \""+req.SubgraphName+"\"")
	}

	if isIntrospectionQuery(req.Query) {
		return map[string]any{
			"_service": map[string]any{"sdl": req.Schema.SDL},
		}, nil
	}

	doc, err := parseQuery(req.Query)
	if err != nil {
		return nil, apperr.Wrap(apperr.GraphQLParseError, "", err)
	}

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		return nil, apperr.Wrap(apperr.GraphQLValidationError, "", err)
	}

	resolverFile, err := e.loader.Load()
	if err != nil {
		e.log.Warn("failed to load mock resolvers, proceeding with defaults", "error", err)
		resolverFile = config.MockResolversFile{}
	}

	ex := &execution{
		schema:    req.Schema,
		entities:  req.Entities,
		fragments: collectFragments(doc),
		resolvers: newResolverLayers(resolverFile, req.SubgraphName, req.Override),
	}

	rootType := rootTypeName(op.Operation)
	data, err := ex.resolveSelectionSet(op.SelectionSet, rootType, req.SubgraphName+":"+rootType)
	if err != nil {
		var schemaErr *schemaProcessingError
		if errors.As(err, &schemaErr) {
			return nil, apperr.Wrap(apperr.SchemaError, "", err).WithExtension("subgraph", req.SubgraphName)
		}
		return nil, apperr.Wrap(apperr.MockGenerationError, "", err)
	}

	return data, nil
}
