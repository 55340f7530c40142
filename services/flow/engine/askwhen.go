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
	"strings"

	"github.com/AleutianAI/flowgraph/services/flow/eval"
)

// evalAskWhen gates an edge on its askWhen predicate.
//
// An absent or empty predicate is true. Evaluation errors are fatal to
// the walk: a predicate that cannot be evaluated means the graph's
// routing is undecidable, and silently treating it as false would route
// applicants down the wrong branch.
func (w *walkContext) evalAskWhen(ctx context.Context, raw any) (bool, error) {
	snippet, ok := raw.(string)
	if raw != nil && !ok {
		return false, fmt.Errorf("%w: askWhen must be a string, got %T", eval.ErrContract, raw)
	}
	if strings.TrimSpace(snippet) == "" {
		return true, nil
	}

	result, err := w.evaluateSnippet(ctx, snippet, w.eng.config.SnippetTimeout)
	if err != nil {
		return false, fmt.Errorf("%w: askWhen: %w", ErrEvaluation, err)
	}
	return truthy(result), nil
}

// truthy coerces an evaluator result to a boolean: nil, false, zero,
// empty string, and empty collections are false; everything else true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
