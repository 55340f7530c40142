// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"fmt"

	"github.com/AleutianAI/flowgraph/services/flow/engine"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

const questionExistsQuery = `MATCH (q:Question {questionId: $questionId}) RETURN q LIMIT 1`

// saveAnswerQuery merges the applicant, the application, and the
// datapoint in one statement so repeated submissions update the same
// datapoint instead of stacking duplicates. createdAt is set once;
// updatedAt tracks revisions.
const saveAnswerQuery = `
MERGE (a:Applicant {applicantId: $applicantId})
MERGE (app:Application {applicationId: $applicationId})
MERGE (a)-[:SUPPLIES]->(d:Datapoint)-[:ANSWERS]->(q:Question {questionId: $questionId})
ON CREATE SET d.typedValue = $value, d.createdAt = datetime()
ON MATCH SET d.typedValue = $value, d.updatedAt = datetime()
MERGE (app)-[:HAS_DATAPOINT]->(d)
RETURN d`

// saveRepeatedAnswerQuery handles allowMultiple questions: each
// submission creates a fresh container under the applicant and routes
// the datapoint through it, so repeated answers accumulate instead of
// overwriting. The container-mediated chain is the shape the engine's
// answered checker looks for. %[1]s is the container relation, %[2]s the
// container label.
const saveRepeatedAnswerQuery = `
MATCH (q:Question {questionId: $questionId})
MERGE (a:Applicant {applicantId: $applicantId})
MERGE (app:Application {applicationId: $applicationId})
CREATE (c:%[2]s {createdAt: datetime()})
CREATE (a)-[:%[1]s]->(c)
CREATE (c)-[:SUPPLIES]->(d:Datapoint {typedValue: $value, createdAt: datetime()})-[:ANSWERS]->(q)
MERGE (app)-[:HAS_DATAPOINT]->(d)
RETURN d`

// AnswerWriter persists applicant answers as Datapoint nodes. Answers to
// allowMultiple questions are routed through container nodes so each
// submission is kept.
type AnswerWriter struct {
	runner   graph.Runner
	relation string
	label    string
}

// NewAnswerWriter creates an AnswerWriter backed by the given runner.
// Empty containerRelation/containerLabel fall back to the engine
// defaults.
func NewAnswerWriter(runner graph.Runner, containerRelation, containerLabel string) *AnswerWriter {
	if containerRelation == "" {
		containerRelation = engine.DefaultContainerRelation
	}
	if containerLabel == "" {
		containerLabel = engine.DefaultContainerLabel
	}
	return &AnswerWriter{runner: runner, relation: containerRelation, label: containerLabel}
}

// Save verifies the question exists, then upserts the answer datapoint.
// For allowMultiple questions the datapoint is created under a fresh
// container instead of merged directly. Returns ErrQuestionNotFound when
// the question id is unknown and ErrAnswerNotSaved when the write
// produced no datapoint.
func (w *AnswerWriter) Save(ctx context.Context, req AnswerRequest) error {
	existing, err := w.runner.Run(ctx, questionExistsQuery, map[string]any{
		"questionId": req.QuestionID,
	})
	if err != nil {
		return fmt.Errorf("checking question %q: %w", req.QuestionID, err)
	}
	if len(existing) == 0 {
		return fmt.Errorf("%w: %q", ErrQuestionNotFound, req.QuestionID)
	}

	query := saveAnswerQuery
	if question, ok := existing[0].First().(*graph.Node); ok &&
		question.BoolProp("allowMultiple", false) {
		query = fmt.Sprintf(saveRepeatedAnswerQuery, w.relation, w.label)
	}

	records, err := w.runner.Run(ctx, query, map[string]any{
		"applicantId":   req.ApplicantID,
		"applicationId": req.ApplicationID,
		"questionId":    req.QuestionID,
		"value":         req.Value,
	})
	if err != nil {
		return fmt.Errorf("saving answer for %q: %w", req.QuestionID, err)
	}
	if len(records) == 0 {
		return ErrAnswerNotSaved
	}
	return nil
}
