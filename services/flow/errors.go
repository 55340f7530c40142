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

import "errors"

// Sentinel errors for the flow service.
var (
	// ErrMissingSectionID indicates the request had no sectionId.
	ErrMissingSectionID = errors.New("sectionId is required")

	// ErrQuestionNotFound indicates an answer was submitted for a
	// question that does not exist in the graph.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrAnswerNotSaved indicates the answer write returned no datapoint.
	ErrAnswerNotSaved = errors.New("answer was not saved")
)
