// Package treepath walks arbitrary JSON-shaped values (maps, slices,
// scalars) and prunes them down to a requested set of field names.
//
// The mock engine uses it to cut a mock resolver's literal override value
// down to exactly the sub-fields the operation selected.
//
// Adapted from federation/executor/executor.go's pruneResponse, which did
// the equivalent for merging cross-subgraph entity responses. The
// Path/PathSegment/BuildPaths machinery that surrounded it there existed
// to address cross-subgraph entity references by path and has no caller
// here, so only the prune step was carried over.
package treepath

// Selection describes one selected field and, if the field's value is
// itself an object or list of objects, the sub-selections to keep.
type Selection struct {
	Field         string
	SubSelections []*Selection
}

// Prune returns a copy of value containing only the fields named by sels,
// recursively. Maps are pruned to the named keys; slices have Prune applied
// element-wise; scalars pass through unchanged. A nil value stays nil. An
// empty sels leaves value untouched (used for leaf scalar fields).
func Prune(value any, sels []*Selection) any {
	if value == nil {
		return nil
	}

	if len(sels) == 0 {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		pruned := make(map[string]any, len(sels))
		for _, sel := range sels {
			val, exists := v[sel.Field]
			if !exists {
				continue
			}
			pruned[sel.Field] = Prune(val, sel.SubSelections)
		}
		return pruned

	case []any:
		pruned := make([]any, 0, len(v))
		for _, elem := range v {
			pruned = append(pruned, Prune(elem, sels))
		}
		return pruned

	default:
		return v
	}
}
