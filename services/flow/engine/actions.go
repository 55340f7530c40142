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
	"fmt"

	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// Action types. The legacy spellings are aliases written by the previous
// graph authoring tool and still present on seeded graphs.
const (
	actionCreateNode      = "CreateNode"
	actionCreateNodeAlias = "CreatePropertyNode"
	actionGotoSection     = "GotoSection"
	actionComplete        = "CompleteSection"
	actionCompleteAlias   = "MarkSectionComplete"
)

// executeAction runs an action node and produces its result.
//
// Actions may carry their own sourceNode expression, resolved before
// dispatch. With returnImmediately (the default) the action's result is
// final; with returnImmediately=false traversal continues from the
// action node and created-node ids accumulate across the chain.
func (e *Engine) executeAction(ctx context.Context, w *walkContext, action *graph.Node, depth int) (*Result, error) {
	if err := w.applySourceNode(ctx, action.Props["sourceNode"]); err != nil {
		return nil, err
	}

	actionType := action.StringProp("actionType")
	w.logger.Debug("executing action",
		"action_id", action.StringProp("actionId"),
		"action_type", actionType)

	result := &Result{CreatedNodeIDs: []any{}}

	switch actionType {
	case actionCreateNode, actionCreateNodeAlias:
		if snippet := action.StringProp("cypher"); snippet != "" {
			ids, err := w.runActionQuery(ctx, snippet)
			if err != nil {
				return nil, fmt.Errorf("%w: CreateNode: %w", ErrEvaluation, err)
			}
			result.CreatedNodeIDs = ids
		}

	case actionGotoSection:
		result.NextSectionID = action.StringProp("nextSectionId")

	case actionComplete, actionCompleteAlias:
		if snippet := action.StringProp("cypher"); snippet != "" {
			if _, err := w.runActionQuery(ctx, snippet); err != nil {
				return nil, fmt.Errorf("%w: CompleteSection: %w", ErrEvaluation, err)
			}
		}
		result.Completed = true

	default:
		w.Warnf("unknown actionType %q on action %q, ignored",
			actionType, action.StringProp("actionId"))
	}

	if action.BoolProp("returnImmediately", true) {
		return result, nil
	}

	downstream, err := e.traverse(ctx, w, action, depth+1)
	if err != nil {
		return nil, err
	}
	return mergeContinuation(result, downstream), nil
}

// runActionQuery substitutes, normalizes, and executes an action's graph
// query, collecting the first column of each row. Created-node ids are
// returned in the first column by convention.
func (w *walkContext) runActionQuery(ctx context.Context, snippet string) ([]any, error) {
	_, rest := eval.Split(snippet)
	statement, err := eval.Substitute(ctx, rest, w, eval.TargetCypher)
	if err != nil {
		return nil, err
	}
	statement = eval.NormalizeQuotes(statement)

	records, err := w.eng.runner.Run(ctx, statement, w.queryParams())
	if err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(records))
	for _, rec := range records {
		if v := rec.First(); v != nil {
			ids = append(ids, graph.Serialize(v))
		}
	}
	return ids, nil
}

// mergeContinuation combines an action's result with the outcome of the
// traversal that continued past it. The downstream outcome decides what
// happens next; the action contributes its created-node ids, and a
// GotoSection jump survives unless the continuation produced its own.
func mergeContinuation(action, downstream *Result) *Result {
	merged := *downstream
	merged.CreatedNodeIDs = append(
		append([]any{}, action.CreatedNodeIDs...),
		downstream.CreatedNodeIDs...)
	if merged.NextSectionID == "" {
		merged.NextSectionID = action.NextSectionID
	}
	if downstream.Question == nil && action.Completed {
		merged.Completed = true
	}
	return &merged
}
