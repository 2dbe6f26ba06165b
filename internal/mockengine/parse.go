package mockengine

import (
	"errors"
	"fmt"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"

	"github.com/n9te9/subgraph-proxy/internal/schemacache"
)

func parseQuery(query string) (*ast.Document, error) {
	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("%v", errs)
	}
	return doc, nil
}

// selectOperation picks the operation operationName names, or the query's
// sole operation if operationName is empty, matching ordinary GraphQL
// execution semantics.
func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	var ops []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 {
		return nil, errors.New("no operation found in query")
	}

	if operationName == "" {
		if len(ops) > 1 {
			return nil, errors.New("operationName is required when a query defines more than one operation")
		}
		return ops[0], nil
	}

	for _, op := range ops {
		if op.Name != nil && op.Name.String() == operationName {
			return op, nil
		}
	}
	return nil, fmt.Errorf("operation %q not found", operationName)
}

func collectFragments(doc *ast.Document) map[string]*ast.FragmentDefinition {
	out := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if fd, ok := def.(*ast.FragmentDefinition); ok {
			out[fd.Name.String()] = fd
		}
	}
	return out
}

func rootTypeName(op ast.OperationType) string {
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

// isIntrospectionQuery implements spec.md §4.1's short-circuit test, via
// the shared normalizer the Passthrough Engine's cache-fallback path also
// uses.
func isIntrospectionQuery(query string) bool {
	return schemacache.IsIntrospectionQuery(query)
}
