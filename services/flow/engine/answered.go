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
)

// answeredQuery checks whether a Datapoint answering the question exists
// under the effective source. Three patterns are recognized:
//
//   - the source directly SUPPLIES a Datapoint that ANSWERS the question
//   - the source reaches a container via the history relation whose
//     Datapoints answer the question
//   - the source itself is a container, in which case its owning parent
//     (via the history relation) is the effective source
//
// Both identity shapes are accepted for the source: element id or
// numeric id.
const answeredQueryTemplate = `
MATCH (src)
WHERE elementId(src) = $srcId OR toString(id(src)) = $srcId
OPTIONAL MATCH (owner)-[:%[1]s]->(src)
WITH coalesce(owner, src) AS eff
RETURN EXISTS {
    MATCH (eff)-[:SUPPLIES]->(:Datapoint)-[:ANSWERS]->(:Question {questionId: $qid})
} OR EXISTS {
    MATCH (eff)-[:%[1]s]->()-[:SUPPLIES]->(:Datapoint)-[:ANSWERS]->(:Question {questionId: $qid})
} AS answered
LIMIT 1`

// answeredDirectQuery only matches the direct pattern under the source
// as-is. Used when repeatable questions must be re-asked against a
// freshly created container rather than satisfied by older siblings.
const answeredDirectQuery = `
MATCH (src)
WHERE elementId(src) = $srcId OR toString(id(src)) = $srcId
RETURN EXISTS {
    MATCH (src)-[:SUPPLIES]->(:Datapoint)-[:ANSWERS]->(:Question {questionId: $qid})
} AS answered
LIMIT 1`

// questionAnswered reports whether the question already has an answer
// under the current source, considering container-mediated patterns.
// A nil source means not answered.
func (w *walkContext) questionAnswered(ctx context.Context, questionID string) (bool, error) {
	if w.source == nil || questionID == "" {
		return false, nil
	}
	query := fmt.Sprintf(answeredQueryTemplate, w.eng.config.ContainerRelation)
	return w.runAnsweredQuery(ctx, query, questionID)
}

// questionAnsweredDirect is the current-context variant: only answers
// supplied directly by the source count.
func (w *walkContext) questionAnsweredDirect(ctx context.Context, questionID string) (bool, error) {
	if w.source == nil || questionID == "" {
		return false, nil
	}
	return w.runAnsweredQuery(ctx, answeredDirectQuery, questionID)
}

func (w *walkContext) runAnsweredQuery(ctx context.Context, query, questionID string) (bool, error) {
	records, err := w.eng.runner.Run(ctx, query, map[string]any{
		"srcId": w.source.Identity(),
		"qid":   questionID,
	})
	if err != nil {
		return false, fmt.Errorf("answered check for question %q: %w", questionID, err)
	}
	if len(records) == 0 {
		return false, nil
	}
	answered, _ := records[0].Get("answered")
	return truthy(answered), nil
}
