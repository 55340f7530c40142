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

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultSandboxTimeout bounds a single sandbox evaluation.
const DefaultSandboxTimeout = 1500 * time.Millisecond

// VariableTimeout bounds variable-definition snippets, which are expected
// to be cheap lookups and comparisons.
const VariableTimeout = 500 * time.Millisecond

// Sandbox evaluates authored expressions in-process.
//
// The expression language is expr with a closed helper set; snippets get
// no filesystem, network, or process access. Compiled programs are cached
// by source, since the same askWhen snippets run on every walk.
//
// Legacy spellings are tolerated: graphs authored against the previous
// engine use True/False/None, which are rewritten to true/false/nil
// before compilation.
type Sandbox struct {
	timeout time.Duration
	cache   sync.Map // normalized source → *vm.Program
}

// NewSandbox returns a sandbox with the given default timeout.
// A zero timeout means DefaultSandboxTimeout.
func NewSandbox(timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultSandboxTimeout
	}
	return &Sandbox{timeout: timeout}
}

var (
	legacyTrueRE  = regexp.MustCompile(`\bTrue\b`)
	legacyFalseRE = regexp.MustCompile(`\bFalse\b`)
	legacyNoneRE  = regexp.MustCompile(`\bNone\b`)
)

// normalizeLegacy rewrites legacy literal spellings to expr equivalents.
func normalizeLegacy(src string) string {
	src = legacyTrueRE.ReplaceAllString(src, "true")
	src = legacyFalseRE.ReplaceAllString(src, "false")
	src = legacyNoneRE.ReplaceAllString(src, "nil")
	return src
}

// helpers is the closed function set exposed to snippets, on top of the
// expression language's own builtins (len, min, max, sum, sort, ...).
func helpers() map[string]any {
	return map[string]any{
		"sorted": func(items []any) []any {
			out := make([]any, len(items))
			copy(out, items)
			sort.SliceStable(out, func(i, j int) bool {
				return fmt.Sprintf("%v", out[i]) < fmt.Sprintf("%v", out[j])
			})
			return out
		},
		"findAll": func(pattern, s string) ([]string, error) {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, err
			}
			return re.FindAllString(s, -1), nil
		},
		"matches": func(pattern, s string) (bool, error) {
			return regexp.MatchString(pattern, s)
		},
	}
}

// Evaluate runs a snippet against env and returns its value.
//
// The snippet must already have its language prefix stripped and its
// template placeholders substituted. String results that parse as JSON
// are returned in parsed form, so a snippet can build a structured value
// by emitting JSON text.
//
// Returns ErrSecurity for snippets that fail compilation, ErrTimeout
// when evaluation exceeds the timeout, and the runtime error otherwise.
func (s *Sandbox) Evaluate(ctx context.Context, snippet string, env map[string]any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}
	src := normalizeLegacy(snippet)

	program, err := s.compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecurity, err)
	}

	runEnv := make(map[string]any, len(env)+4)
	for k, v := range helpers() {
		runEnv[k] = v
	}
	for k, v := range env {
		runEnv[k] = v
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := expr.Run(program, runEnv)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("evaluating snippet: %w", out.err)
		}
		return parseJSONResult(out.value), nil
	case <-time.After(timeout):
		// The goroutine is abandoned; the expression VM has no
		// cancellation hook.
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Sandbox) compile(src string) (*vm.Program, error) {
	if cached, ok := s.cache.Load(src); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	s.cache.Store(src, program)
	return program, nil
}

// parseJSONResult upgrades string results that are valid JSON documents
// into their parsed value. Plain strings pass through unchanged.
func parseJSONResult(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	var parsed any
	if err := json.Unmarshal([]byte(str), &parsed); err != nil {
		return str
	}
	return parsed
}
