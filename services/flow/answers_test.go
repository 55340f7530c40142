// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerWriter_DirectMerge(t *testing.T) {
	runner := &answerRunner{questionExists: true}
	writer := NewAnswerWriter(runner, "", "")

	err := writer.Save(context.Background(), AnswerRequest{
		ApplicantID:   "a-17",
		QuestionID:    "Q1",
		Value:         "yes",
		ApplicationID: "app-3",
	})
	require.NoError(t, err)

	assert.Contains(t, runner.lastQuery, "MERGE (a)-[:SUPPLIES]->(d:Datapoint)")
	assert.NotContains(t, runner.lastQuery, "HAS_HISTORY_PROPERTY")
	assert.Equal(t, "yes", runner.lastParams["value"])
}

// Repeatable questions get a fresh container per submission so answers
// accumulate; the resulting chain is the container-mediated pattern the
// engine's answered checker recognizes.
func TestAnswerWriter_RepeatableCreatesContainer(t *testing.T) {
	runner := &answerRunner{questionExists: true, allowMultiple: true}
	writer := NewAnswerWriter(runner, "", "")

	err := writer.Save(context.Background(), AnswerRequest{
		ApplicantID:   "a-17",
		QuestionID:    "Q_Addr",
		Value:         "12 Elm St",
		ApplicationID: "app-3",
	})
	require.NoError(t, err)

	assert.Contains(t, runner.lastQuery, "CREATE (c:HistoryProperty")
	assert.Contains(t, runner.lastQuery, "(a)-[:HAS_HISTORY_PROPERTY]->(c)")
	assert.Contains(t, runner.lastQuery, "(c)-[:SUPPLIES]->(d:Datapoint")
	assert.NotContains(t, runner.lastQuery, "MERGE (a)-[:SUPPLIES]")
}

func TestAnswerWriter_CustomContainerShape(t *testing.T) {
	runner := &answerRunner{questionExists: true, allowMultiple: true}
	writer := NewAnswerWriter(runner, "HAS_ADDRESS_HISTORY", "AddressHistory")

	err := writer.Save(context.Background(), AnswerRequest{
		ApplicantID:   "a-17",
		QuestionID:    "Q_Addr",
		Value:         "12 Elm St",
		ApplicationID: "app-3",
	})
	require.NoError(t, err)

	assert.Contains(t, runner.lastQuery, "CREATE (c:AddressHistory")
	assert.Contains(t, runner.lastQuery, "(a)-[:HAS_ADDRESS_HISTORY]->(c)")
}
