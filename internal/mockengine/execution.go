package mockengine

import (
	"fmt"

	"github.com/n9te9/goliteql/schema"
	"github.com/n9te9/graphql-parser/ast"

	"github.com/n9te9/subgraph-proxy/federation/graph"
	"github.com/n9te9/subgraph-proxy/internal/treepath"
)

// execution holds everything one Execute call threads through the
// recursive selection-set walk: the compiled schema, the optional
// AST-backed entity metadata, the resolved fragment definitions, and the
// resolver-map layers built for this call.
type execution struct {
	schema    *graph.Schema
	entities  *graph.SubGraphV2
	fragments map[string]*ast.FragmentDefinition
	resolvers resolverLayers
}

// resolveSelectionSet walks selSet, generating or overriding a value for
// every field, inlining fragment spreads and inline fragments into the
// same object (they never produce a nested value of their own).
func (ex *execution) resolveSelectionSet(selSet []ast.Selection, parentTypeName, seedPrefix string) (map[string]any, error) {
	out := make(map[string]any)

	for _, sel := range selSet {
		switch s := sel.(type) {
		case *ast.Field:
			name := s.Name.String()
			key := name
			if s.Alias != nil && s.Alias.String() != "" {
				key = s.Alias.String()
			}

			if name == "__typename" {
				out[key] = parentTypeName
				continue
			}

			val, err := ex.resolveField(parentTypeName, name, s.SelectionSet, seedPrefix+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = val

		case *ast.InlineFragment:
			typeCond := parentTypeName
			if s.TypeCondition != nil {
				typeCond = s.TypeCondition.String()
			}
			nested, err := ex.resolveSelectionSet(s.SelectionSet, typeCond, seedPrefix)
			if err != nil {
				return nil, err
			}
			for k, v := range nested {
				out[k] = v
			}

		case *ast.FragmentSpread:
			fragDef, ok := ex.fragments[s.Name.String()]
			if !ok {
				continue
			}
			typeCond := parentTypeName
			if fragDef.TypeCondition != nil {
				typeCond = fragDef.TypeCondition.String()
			}
			nested, err := ex.resolveSelectionSet(fragDef.SelectionSet, typeCond, seedPrefix)
			if err != nil {
				return nil, err
			}
			for k, v := range nested {
				out[k] = v
			}
		}
	}

	return out, nil
}

// resolveField resolves one field of parentTypeName: a per-call or
// resolver-file override wins outright; otherwise the value is generated
// from the field's declared type.
func (ex *execution) resolveField(parentTypeName, fieldName string, childSel []ast.Selection, seed string) (any, error) {
	if v, ok := ex.resolvers.fieldOverride(parentTypeName, fieldName); ok {
		// A resolver file is free to describe a field's override value once
		// with every sub-field filled in; different operations may select
		// different subsets of it, so it is pruned down to childSel before
		// it is returned, same as a generated value would be.
		return treepath.Prune(v, ex.treepathSelections(childSel)), nil
	}

	if ex.schema.TypeDefinition(parentTypeName) == nil {
		return nil, &schemaProcessingError{typeName: parentTypeName}
	}

	fieldDef := findFieldDefinition(ex.schema, parentTypeName, fieldName)
	if fieldDef == nil {
		return nil, fmt.Errorf("field %q not found on type %q", fieldName, parentTypeName)
	}

	return ex.generateValue(fieldDef.Type, childSel, seed)
}

// generateValue produces a schema-conformant value for ft: a list when ft
// is list-typed, a generated object when ft's root type is an object, a
// declared enum member, or a scalar default.
func (ex *execution) generateValue(ft *schema.FieldType, childSel []ast.Selection, seed string) (any, error) {
	if ft == nil {
		return nil, nil
	}

	if ft.IsList {
		const mockListLength = 2
		items := make([]any, 0, mockListLength)
		for i := 0; i < mockListLength; i++ {
			v, err := ex.generateValue(ft.ListType, childSel, fmt.Sprintf("%s[%d]", seed, i))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}

	typeName := string(ft.Name)

	// A whole-type resolver that resolves to a literal (not a field map)
	// replaces the entire generated value, scalar or object alike.
	if override := ex.resolvers.forType(typeName); override != nil {
		if _, isFieldMap := override.(map[string]any); !isFieldMap {
			return override, nil
		}
	}

	if td := ex.schema.TypeDefinition(typeName); td != nil {
		return ex.generateObject(td, typeName, childSel, seed)
	}

	if values := ex.schema.EnumValues(typeName); len(values) > 0 {
		return values[deterministicIndex(seed, len(values))], nil
	}

	return scalarValue(typeName, seed), nil
}

// generateObject resolves childSel against typeName's fields, then
// overwrites any selected @key field with a value derived only from the
// path seed, so two requests walking the same selection path see the
// same entity identifier.
func (ex *execution) generateObject(td *schema.TypeDefinition, typeName string, childSel []ast.Selection, seed string) (map[string]any, error) {
	obj, err := ex.resolveSelectionSet(childSel, typeName, seed)
	if err != nil {
		return nil, err
	}

	for _, keyField := range ex.keyFieldsFor(typeName) {
		if _, selected := obj[keyField]; selected {
			obj[keyField] = deterministicID(seed + "#" + keyField)
		}
	}

	return obj, nil
}

// keyFieldsFor prefers the AST-backed entity metadata (which also knows
// about @requires/@provides/@shareable, not just @key) when available,
// falling back to the compiled schema's own @key extraction.
func (ex *execution) keyFieldsFor(typeName string) []string {
	if ex.entities != nil {
		if entity, ok := ex.entities.GetEntity(typeName); ok {
			if names := entity.KeyFieldNames(); len(names) > 0 {
				return names
			}
		}
	}
	return ex.schema.KeyFields(typeName)
}

// treepathSelections flattens an operation's selection set (resolving
// fragment spreads and inline fragments, which contribute fields to the
// same level rather than nesting) into the field/sub-selection shape
// treepath.Prune expects.
func (ex *execution) treepathSelections(selSet []ast.Selection) []*treepath.Selection {
	var out []*treepath.Selection

	for _, sel := range selSet {
		switch s := sel.(type) {
		case *ast.Field:
			key := s.Name.String()
			if s.Alias != nil && s.Alias.String() != "" {
				key = s.Alias.String()
			}
			out = append(out, &treepath.Selection{
				Field:         key,
				SubSelections: ex.treepathSelections(s.SelectionSet),
			})

		case *ast.InlineFragment:
			out = append(out, ex.treepathSelections(s.SelectionSet)...)

		case *ast.FragmentSpread:
			if fragDef, ok := ex.fragments[s.Name.String()]; ok {
				out = append(out, ex.treepathSelections(fragDef.SelectionSet)...)
			}
		}
	}

	return out
}

// schemaProcessingError marks a failure caused by the cached schema itself
// lacking a type the operation walks through, as opposed to the operation
// selecting a field that the (well-formed) schema simply doesn't declare.
// Engine.Execute maps it to SCHEMA_ERROR rather than MOCK_GENERATION_ERROR.
type schemaProcessingError struct {
	typeName string
}

func (e *schemaProcessingError) Error() string {
	return fmt.Sprintf("type %q is not defined in the cached schema", e.typeName)
}

func findFieldDefinition(s *graph.Schema, parentTypeName, fieldName string) *schema.FieldDefinition {
	for _, f := range fieldsForType(s, parentTypeName) {
		if string(f.Name) == fieldName {
			return f
		}
	}
	return nil
}

// fieldsForType returns typeName's field list. Query/Mutation/Subscription
// are indexed the same way as any other object type, so a single
// TypeDefinition lookup covers both root and nested types.
func fieldsForType(s *graph.Schema, typeName string) []*schema.FieldDefinition {
	if td := s.TypeDefinition(typeName); td != nil {
		return td.Fields
	}
	return nil
}
