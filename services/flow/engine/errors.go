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

import "errors"

var (
	// ErrSectionNotFound is returned when the requested section does not
	// exist in the graph.
	ErrSectionNotFound = errors.New("engine: section not found")

	// ErrEvaluation is returned when an askWhen predicate or action
	// snippet fails in a way the walk cannot recover from.
	ErrEvaluation = errors.New("engine: snippet evaluation failed")

	// ErrTraversalDepth is returned when a walk descends past the depth
	// limit, which indicates a cycle or a runaway continuation chain in
	// the authored graph.
	ErrTraversalDepth = errors.New("engine: traversal depth limit exceeded")
)
