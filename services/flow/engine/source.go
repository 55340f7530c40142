// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// applySourceNode resolves a sourceNode expression and installs the
// result as the context's current source. An absent expression keeps the
// existing source; everything the expression produces, including nil,
// replaces it.
//
// Resolution failures are non-fatal: the source becomes nil and a
// warning is recorded. The exception is an evaluator timeout, which
// fails the walk like every other timeout.
func (w *walkContext) applySourceNode(ctx context.Context, raw any) error {
	snippet, ok := raw.(string)
	if !ok || strings.TrimSpace(snippet) == "" {
		return nil
	}
	snippet = strings.TrimSpace(snippet)

	node, err := w.resolveSourceNode(ctx, snippet)
	if err != nil {
		if errors.Is(err, eval.ErrTimeout) {
			return err
		}
		w.Warnf("sourceNode resolution failed: %v", err)
		node = nil
	}
	w.source = node
	return nil
}

func (w *walkContext) resolveSourceNode(ctx context.Context, snippet string) (*graph.Node, error) {
	// Bare "{{ name }}" resolves the variable as a value; anything that
	// is not a node is rejected rather than coerced.
	if path, ok := eval.BarePlaceholder(snippet); ok {
		value, err := eval.ResolvePath(ctx, w, path)
		if err != nil {
			return nil, err
		}
		return w.asNode(value, snippet), nil
	}

	value, err := w.evaluateSnippet(ctx, snippet, w.eng.config.SnippetTimeout)
	if err != nil {
		return nil, err
	}
	return w.asNode(value, snippet), nil
}

// asNode coerces an evaluator result to a node. Single-element lists
// unwrap; everything else warns and yields nil.
func (w *walkContext) asNode(value any, snippet string) *graph.Node {
	switch t := value.(type) {
	case nil:
		return nil
	case *graph.Node:
		return t
	case []any:
		if len(t) == 1 {
			if n, ok := t[0].(*graph.Node); ok {
				return n
			}
		}
	}
	w.Warnf("sourceNode expression %q did not resolve to a node (got %T)", snippet, value)
	return nil
}
