// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "strings"

// FilterParams returns a copy of params safe to pass as Cypher parameters.
//
// Two families of values are removed:
//
//   - Keys starting with "__": engine-internal bookkeeping (for example
//     __sourceNode) that must never leak into a statement.
//   - Graph values (*Node, *Relationship, *Path): the driver cannot send
//     these back as parameters. Nodes are replaced by their identity
//     string so "MATCH (n) WHERE elementId(n) = $src" style statements
//     keep working; relationships and paths are dropped.
//
// Nested maps and lists are filtered recursively.
func FilterParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if strings.HasPrefix(k, "__") {
			continue
		}
		fv, ok := filterValue(v)
		if !ok {
			continue
		}
		out[k] = fv
	}
	return out
}

func filterValue(v any) (any, bool) {
	switch t := v.(type) {
	case *Node:
		if t == nil {
			return nil, true
		}
		return t.Identity(), true
	case *Relationship, *Path:
		return nil, false
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if strings.HasPrefix(k, "__") {
				continue
			}
			fe, ok := filterValue(e)
			if !ok {
				continue
			}
			out[k] = fe
		}
		return out, true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			fe, ok := filterValue(e)
			if !ok {
				continue
			}
			out = append(out, fe)
		}
		return out, true
	default:
		return v, true
	}
}
