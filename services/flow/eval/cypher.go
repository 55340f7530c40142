// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"context"

	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// Cypher evaluates store-side snippets.
//
// A snippet is template-substituted, quote-normalized, and executed under
// the row cap; the result set is then collapsed into a single value by
// shape:
//
//   - no rows → nil
//   - one row, one column → that value
//   - one row with a "value" column → that column
//   - one row, several columns → column map
//   - several rows, one column each → list of values
//   - several rows, several columns → list of column maps
//
// Graph values in results stay decoded (*graph.Node etc.) so callers can
// use them as source nodes; serialization to primitive shapes happens
// only at response and template boundaries.
type Cypher struct {
	runner graph.Runner
}

// NewCypher returns a Cypher evaluator backed by runner.
func NewCypher(runner graph.Runner) *Cypher {
	return &Cypher{runner: runner}
}

// Evaluate substitutes, normalizes, and runs the snippet.
// The snippet must already have its "cypher:" prefix stripped.
func (c *Cypher) Evaluate(ctx context.Context, snippet string, r Resolver, params map[string]any) (any, error) {
	statement, err := Substitute(ctx, snippet, r, TargetCypher)
	if err != nil {
		return nil, err
	}
	statement = NormalizeQuotes(statement)

	records, err := c.runner.RunCapped(ctx, statement, params, 0)
	if err != nil {
		return nil, err
	}
	return Collapse(records), nil
}

// Collapse reduces a result set to a single evaluator value.
func Collapse(records []graph.Record) any {
	switch len(records) {
	case 0:
		return nil
	case 1:
		return collapseRecord(records[0])
	default:
		out := make([]any, len(records))
		for i, rec := range records {
			out[i] = collapseRecord(rec)
		}
		return out
	}
}

func collapseRecord(rec graph.Record) any {
	if len(rec.Keys) == 1 {
		return rec.First()
	}
	if v, ok := rec.Get("value"); ok {
		return v
	}
	return rec.AsMap()
}
