// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import "errors"

var (
	// ErrTimeout is returned when a snippet does not finish within its
	// evaluation deadline. Callers treat this as fatal for the walk.
	ErrTimeout = errors.New("eval: evaluator timed out")

	// ErrSecurity is returned when a snippet fails sandbox compilation,
	// references something outside the allowed environment, or is
	// otherwise rejected before execution.
	ErrSecurity = errors.New("eval: snippet rejected by sandbox")

	// ErrContract is returned when a snippet or template violates the
	// evaluator contract, e.g. a non-string expression where a string
	// snippet is required.
	ErrContract = errors.New("eval: evaluator contract violation")
)
