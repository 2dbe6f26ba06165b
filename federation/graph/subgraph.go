// Package graph holds the two schema representations the rest of the
// proxy builds on: a goliteql/schema.Schema-backed compiled schema used
// for type-directed lookups (this file), and an ast.Document-backed
// entity/key extractor used for deterministic mock identifiers
// (subgraph_v2.go).
//
// Adapted from the teacher's federation/graph/subgraph.go, which parsed a
// subgraph's SDL the same way but additionally tracked cross-subgraph
// field ownership for composing a supergraph. That ownership bookkeeping
// (OwnershipFieldMap, NewBaseSubGraph) has no meaning once a schema only
// ever belongs to the one subgraph that owns it, so it is gone; the
// unique-key extraction it also did survives as KeyFields, now used for
// deterministic mock id generation instead of entity resolution.
package graph

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/n9te9/goliteql/schema"
)

// Schema is a single subgraph's compiled schema: the goliteql
// representation used for type-directed lookups, plus the SDL text it was
// parsed from.
type Schema struct {
	Name     string
	SDL      string
	Compiled *schema.Schema

	keyFields   map[string][]string
	enumValues  map[string][]string
	scalarNames map[string]struct{}
}

// Parse parses src as a subgraph's SDL and returns its compiled Schema.
func Parse(name string, src []byte) (*Schema, error) {
	compiled, err := schema.NewParser(schema.NewLexer()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema for subgraph %q: %w", name, err)
	}

	enumValues, scalarNames := buildLeafIndexes(compiled)

	return &Schema{
		Name:        name,
		SDL:         string(src),
		Compiled:    compiled,
		keyFields:   buildKeyFields(compiled),
		enumValues:  enumValues,
		scalarNames: scalarNames,
	}, nil
}

// TypeDefinition looks up a named object type by its index, returning nil
// if name is not an object type (it may be a scalar, enum, or unknown).
func (s *Schema) TypeDefinition(name string) *schema.TypeDefinition {
	return s.Compiled.Indexes.TypeIndex[name]
}

// KeyFields returns the field names listed in a type's @key directive, or
// nil if the type has none. Used to build a deterministic identifier for
// a generated mock entity instead of a random one.
func (s *Schema) KeyFields(typeName string) []string {
	return s.keyFields[typeName]
}

// EnumValues returns name's declared enum members, or nil if name is not
// an enum type.
func (s *Schema) EnumValues(name string) []string {
	return s.enumValues[name]
}

// IsCustomScalar reports whether name was declared with `scalar name` in
// the subgraph's own SDL, as opposed to one of the five built-in scalars
// (String, Int, Float, Boolean, ID).
func (s *Schema) IsCustomScalar(name string) bool {
	_, ok := s.scalarNames[name]
	return ok
}

func buildLeafIndexes(s *schema.Schema) (enumValues map[string][]string, scalarNames map[string]struct{}) {
	enumValues = make(map[string][]string)
	scalarNames = make(map[string]struct{})

	for _, ext := range s.Extends {
		switch e := ext.(type) {
		case *schema.EnumDefinition:
			values := make([]string, 0, len(e.Values))
			for _, v := range e.Values {
				values = append(values, string(v.Name))
			}
			enumValues[string(e.Name)] = values
		case *schema.ScalarDefinition:
			scalarNames[string(e.Name)] = struct{}{}
		}
	}

	return enumValues, scalarNames
}

func buildKeyFields(s *schema.Schema) map[string][]string {
	fields := make(map[string][]string, len(s.Types))
	for _, t := range s.Types {
		if keys := getObjectKeyFields(t); len(keys) > 0 {
			fields[string(t.Name)] = keys
		}
	}
	return fields
}

// getObjectKeyFields extracts the field set named by a type's @key
// directive, e.g. @key(fields: "id") -> ["id"].
func getObjectKeyFields(t *schema.TypeDefinition) []string {
	directives := schema.Directives(t.Directives)
	keyDirective := directives.Get([]byte("key"))
	if keyDirective == nil {
		return nil
	}

	for _, arg := range keyDirective.Arguments {
		if bytes.Equal(arg.Name, []byte("fields")) {
			v := bytes.Trim(arg.Value, `"`)
			return strings.Fields(string(v))
		}
	}

	return nil
}
