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

	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

const sectionQuery = `
MATCH (s:Section {sectionId: $sid})
RETURN s
LIMIT 1`

// edgesQuery fetches outgoing traversal edges in authored order. The
// ordering is load-bearing: coalesce(orderInForm, order) ranks edges the
// way the form designer sequenced them, and id(e) breaks ties by
// creation order so walks are deterministic.
const edgesQuery = `
MATCH (n)
WHERE elementId(n) = $nid OR toString(id(n)) = $nid
MATCH (n)-[e]->(t)
WHERE type(e) IN ['PRECEDES','TRIGGERS']
RETURN e, t
ORDER BY coalesce(e.orderInForm, e.order), id(e)`

// Walk traverses the section depth-first and returns the next question
// to ask, a jump to another section, or a completion result.
func (e *Engine) Walk(ctx context.Context, sectionID string, params map[string]any) (*Result, error) {
	logger := e.logger.With("section_id", sectionID)
	w := newWalkContext(e, logger, params)

	records, err := e.runner.Run(ctx, sectionQuery, map[string]any{"sid": sectionID})
	if err != nil {
		return nil, fmt.Errorf("loading section %q: %w", sectionID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, sectionID)
	}
	section, ok := records[0].First().(*graph.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, sectionID)
	}

	logger.Info("walk started", "params", len(params))

	// Section sourceNode resolves before variable declarations load, so
	// declarations may reference sourceNodeId.
	if err := w.applySourceNode(ctx, section.Props["sourceNode"]); err != nil {
		return nil, err
	}
	w.mergeDefs(section.Props["variables"])

	result, err := e.traverse(ctx, w, section, 0)
	if err != nil {
		logger.Error("walk failed", "error", err)
		return nil, err
	}

	result.SectionID = sectionID
	result.RequestVariables = w.params
	result.SourceNode = w.sourceIdentity()
	result.Vars = w.snapshot()
	result.Warnings = w.warnings
	if result.CreatedNodeIDs == nil {
		result.CreatedNodeIDs = []any{}
	}

	logger.Info("walk finished",
		"completed", result.Completed,
		"has_question", result.Question != nil,
		"next_section", result.NextSectionID,
		"warnings", len(result.Warnings))
	return result, nil
}

// traverse walks the ordered outgoing edges of node. It returns a stop
// result at the first unanswered (or repeatable) question, delegates to
// the action executor for action targets, and reports completion when no
// edge matches.
func (e *Engine) traverse(ctx context.Context, w *walkContext, node *graph.Node, depth int) (*Result, error) {
	if depth > e.config.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d at node %s", ErrTraversalDepth, depth, node.Identity())
	}

	edges, err := e.fetchEdges(ctx, node)
	if err != nil {
		return nil, err
	}

	for _, edge := range edges {
		// Edge-level declarations shadow earlier ones for the rest of
		// the walk.
		w.mergeDefs(edge.rel.Props["variables"])

		if err := w.applySourceNode(ctx, edge.rel.Props["sourceNode"]); err != nil {
			return nil, err
		}

		pass, err := w.evalAskWhen(ctx, edge.rel.Props["askWhen"])
		if err != nil {
			return nil, err
		}
		if !pass {
			continue
		}

		target := edge.target
		switch {
		case target.HasLabel("Question"):
			questionID := target.StringProp("questionId")

			// Repeatable questions are asked whenever their edge fires;
			// the edge's askWhen is the loop's termination condition.
			if target.BoolProp("allowMultiple", false) {
				w.logger.Debug("stopping at repeatable question", "question_id", questionID)
				return stopAt(questionID), nil
			}

			// Inside a repeatable group the source is the container
			// itself; only its own datapoints count, or an older
			// sibling's answer would satisfy the check and the group's
			// questions would never be re-asked.
			var answered bool
			if w.source != nil && w.source.HasLabel(e.config.ContainerLabel) {
				answered, err = w.questionAnsweredDirect(ctx, questionID)
			} else {
				answered, err = w.questionAnswered(ctx, questionID)
			}
			if err != nil {
				return nil, err
			}
			if answered {
				w.logger.Debug("question already answered, continuing past it",
					"question_id", questionID)
				return e.traverse(ctx, w, target, depth+1)
			}
			w.logger.Debug("stopping at unanswered question", "question_id", questionID)
			return stopAt(questionID), nil

		case target.HasLabel("Action") || target.StringProp("actionType") != "":
			return e.executeAction(ctx, w, target, depth)
		}
		// Other targets are not traversable; try the next edge.
	}

	return &Result{Completed: true, CreatedNodeIDs: []any{}}, nil
}

// orderedEdge pairs a traversal relationship with its target node.
type orderedEdge struct {
	rel    *graph.Relationship
	target *graph.Node
}

func (e *Engine) fetchEdges(ctx context.Context, node *graph.Node) ([]orderedEdge, error) {
	records, err := e.runner.Run(ctx, edgesQuery, map[string]any{"nid": node.Identity()})
	if err != nil {
		return nil, fmt.Errorf("fetching edges of %s: %w", node.Identity(), err)
	}

	edges := make([]orderedEdge, 0, len(records))
	for _, rec := range records {
		relVal, _ := rec.Get("e")
		targetVal, _ := rec.Get("t")
		rel, okRel := relVal.(*graph.Relationship)
		target, okTarget := targetVal.(*graph.Node)
		if !okRel || !okTarget {
			continue
		}
		edges = append(edges, orderedEdge{rel: rel, target: target})
	}
	return edges, nil
}

// mergeDefs parses a `variables` property and merges the declarations
// into the context, later declarations shadowing earlier ones. Malformed
// declarations degrade to a warning.
func (w *walkContext) mergeDefs(raw any) {
	if raw == nil {
		return
	}
	defs, err := parseVarDefs(raw)
	if err != nil {
		w.Warnf("malformed variables declaration: %v", err)
		return
	}
	for _, def := range defs {
		w.defs[def.Name] = def
	}
}

func stopAt(questionID string) *Result {
	return &Result{
		Question:       map[string]any{"questionId": questionID},
		CreatedNodeIDs: []any{},
	}
}
