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
	"encoding/json"

	"github.com/AleutianAI/flowgraph/services/flow/engine"
)

// NextQuestionRequest is the body of POST /v1/api/next_question_flow.
//
// Beyond the named fields, any additional top-level keys are passed
// through to the walk as input parameters; edges and variable
// declarations reference them by name in snippets. The custom
// unmarshaller collects them into Extra.
type NextQuestionRequest struct {
	SectionID     string `json:"sectionId"`
	ApplicationID string `json:"applicationId"`
	ApplicantID   string `json:"applicantId"`
	IsPrimaryFlow bool   `json:"isPrimaryFlow"`

	// Extra holds any additional request parameters.
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes the named fields and collects everything else
// into Extra.
func (r *NextQuestionRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["sectionId"].(string); ok {
		r.SectionID = v
	}
	if v, ok := raw["applicationId"].(string); ok {
		r.ApplicationID = v
	}
	if v, ok := raw["applicantId"].(string); ok {
		r.ApplicantID = v
	}
	if v, ok := raw["isPrimaryFlow"].(bool); ok {
		r.IsPrimaryFlow = v
	}
	delete(raw, "sectionId")
	delete(raw, "applicationId")
	delete(raw, "applicantId")
	delete(raw, "isPrimaryFlow")
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// Params builds the walk's input-parameter map: the named fields plus
// every extra key. The section id is included so snippets and the
// response echo can reference it.
func (r *NextQuestionRequest) Params() map[string]any {
	params := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		params[k] = v
	}
	params["sectionId"] = r.SectionID
	if r.ApplicationID != "" {
		params["applicationId"] = r.ApplicationID
	}
	if r.ApplicantID != "" {
		params["applicantId"] = r.ApplicantID
	}
	params["isPrimaryFlow"] = r.IsPrimaryFlow
	return params
}

// NextQuestionResponse is the walk result plus the trace id under which
// the walk was captured.
type NextQuestionResponse struct {
	engine.Result
	TraceID string `json:"traceId"`
}

// AnswerRequest is the body of POST /v1/api/answer. Field names follow
// the established wire format of the answer endpoint.
type AnswerRequest struct {
	ApplicantID   string `json:"applicant_id" binding:"required"`
	QuestionID    string `json:"question_id" binding:"required"`
	Value         string `json:"value" binding:"required"`
	ApplicationID string `json:"application_id" binding:"required"`
}

// AnswerResponse acknowledges a saved answer.
type AnswerResponse struct {
	Message string `json:"message"`
	TraceID string `json:"traceId"`
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}
