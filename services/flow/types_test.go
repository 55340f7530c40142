// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextQuestionRequest_Unmarshal(t *testing.T) {
	body := []byte(`{
		"sectionId": "employment",
		"applicantId": "a-17",
		"isPrimaryFlow": true,
		"priorYears": 2,
		"region": "west"
	}`)

	var req NextQuestionRequest
	require.NoError(t, json.Unmarshal(body, &req))

	assert.Equal(t, "employment", req.SectionID)
	assert.Equal(t, "a-17", req.ApplicantID)
	assert.True(t, req.IsPrimaryFlow)
	assert.Equal(t, map[string]any{"priorYears": float64(2), "region": "west"}, req.Extra)
}

func TestNextQuestionRequest_Params(t *testing.T) {
	req := NextQuestionRequest{
		SectionID:   "s",
		ApplicantID: "a-17",
		Extra:       map[string]any{"region": "west"},
	}

	params := req.Params()
	assert.Equal(t, "s", params["sectionId"])
	assert.Equal(t, "a-17", params["applicantId"])
	assert.Equal(t, "west", params["region"])
	assert.Equal(t, false, params["isPrimaryFlow"])
	// Empty optional ids are omitted rather than sent as "".
	_, ok := params["applicationId"]
	assert.False(t, ok)
}

func TestNextQuestionRequest_UnmarshalRejectsNonObject(t *testing.T) {
	var req NextQuestionRequest
	require.Error(t, json.Unmarshal([]byte(`["sectionId"]`), &req))
}
