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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// varState tracks the lifecycle of a declared variable on a walk.
type varState int

const (
	varUnresolved varState = iota
	varResolving
	varResolved
	varFailed
)

// varEntry is the memoization cell for one declared variable.
type varEntry struct {
	state varState
	value any
}

// walkContext carries the mutable state of one traversal: input
// parameters, declared variables with their memoized values, the current
// source node, and accumulated warnings.
//
// It implements eval.Resolver, which is how template placeholders in
// snippets reach back into the walk for lazy variable resolution.
type walkContext struct {
	eng    *Engine
	logger *slog.Logger

	// params are the request's input parameters, e.g. applicantId.
	params map[string]any

	// defs maps variable names to their declarations. Section-level
	// declarations load first; edges may shadow them from then on.
	defs map[string]VarDef

	// vars holds memoization cells keyed by variable name.
	vars map[string]*varEntry

	// source is the current source node. Nil until a section or edge
	// sourceNode snippet resolves one.
	source *graph.Node

	warnings []Warning
}

func newWalkContext(eng *Engine, logger *slog.Logger, params map[string]any) *walkContext {
	if params == nil {
		params = map[string]any{}
	}
	return &walkContext{
		eng:    eng,
		logger: logger,
		params: params,
		defs:   map[string]VarDef{},
		vars:   map[string]*varEntry{},
	}
}

// Warnf records a non-fatal problem on the walk. Warnings are returned
// to the caller alongside the result.
func (w *walkContext) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.warnings = append(w.warnings, Warning{Message: msg})
	w.logger.Warn("walk warning", "warning", msg)
}

// warnVar records a warning attributed to a variable, carrying a
// truncated view of the snippet that failed.
func (w *walkContext) warnVar(name, message, snippet string) {
	const snippetLimit = 80
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit] + "..."
	}
	w.warnings = append(w.warnings, Warning{
		Variable:  name,
		Message:   message,
		Evaluator: snippet,
	})
	w.logger.Warn("variable warning", "variable", name, "message", message)
}

// ResolveVar implements eval.Resolver.
//
// Lookup order: the reserved names sourceNode/sourceNodeId, then input
// parameters, then declared variables (computed lazily and memoized).
// Unknown names resolve to nil with a warning; the only error that
// escapes is an evaluator timeout, which fails the walk.
func (w *walkContext) ResolveVar(ctx context.Context, name string) (any, error) {
	switch name {
	case "sourceNode":
		if w.source == nil {
			return nil, nil
		}
		return w.source, nil
	case "sourceNodeId":
		if w.source == nil {
			return nil, nil
		}
		return w.source.Identity(), nil
	}

	if v, ok := w.params[name]; ok {
		return v, nil
	}
	if _, ok := w.defs[name]; ok {
		return w.resolveDeclared(ctx, name)
	}

	w.Warnf("unknown variable %q", name)
	return nil, nil
}

// resolveDeclared computes a declared variable, memoizing the outcome.
//
// Failures memoize as nil so a broken definition is evaluated once per
// walk, not once per reference. Re-entrant resolution (a definition that
// references itself, directly or through another variable) short-circuits
// to nil with a warning instead of recursing forever.
//
// Evaluator timeouts are the one failure that does not degrade to nil:
// they propagate and fail the walk.
func (w *walkContext) resolveDeclared(ctx context.Context, name string) (any, error) {
	entry, ok := w.vars[name]
	if ok {
		switch entry.state {
		case varResolved, varFailed:
			return entry.value, nil
		case varResolving:
			w.warnVar(name, "circular reference", "")
			return nil, nil
		}
	}
	entry = &varEntry{state: varResolving}
	w.vars[name] = entry

	def := w.defs[name]
	value, err := w.evaluateDef(ctx, def)
	if err != nil {
		entry.state = varFailed
		entry.value = nil
		if errors.Is(err, eval.ErrTimeout) {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		w.warnVar(name, err.Error(), def.snippet())
		return nil, nil
	}

	entry.state = varResolved
	entry.value = value
	w.logger.Debug("variable resolved", "name", name)
	return value, nil
}

// evaluateDef runs a variable declaration with its declared timeout.
func (w *walkContext) evaluateDef(ctx context.Context, def VarDef) (any, error) {
	switch {
	case def.Cypher != "":
		_, rest := eval.Split(def.Cypher)
		return w.eng.cypher.Evaluate(ctx, rest, w, w.queryParams())
	case def.Python != "":
		_, rest := eval.Split(def.Python)
		substituted, err := eval.Substitute(ctx, rest, w, eval.TargetSandbox)
		if err != nil {
			return nil, err
		}
		return w.eng.sandbox.Evaluate(ctx, substituted, w.sandboxEnv(), def.timeout())
	default:
		return nil, fmt.Errorf("declaration has no cypher or python snippet")
	}
}

// evaluateSnippet dispatches an ad-hoc snippet (askWhen, sourceNode) by
// its language prefix with template substitution applied for the target.
func (w *walkContext) evaluateSnippet(ctx context.Context, snippet string, timeout time.Duration) (any, error) {
	lang, rest := eval.Split(snippet)
	switch lang {
	case eval.LangCypher:
		return w.eng.cypher.Evaluate(ctx, rest, w, w.queryParams())
	default:
		substituted, err := eval.Substitute(ctx, rest, w, eval.TargetSandbox)
		if err != nil {
			return nil, err
		}
		return w.eng.sandbox.Evaluate(ctx, substituted, w.sandboxEnv(), timeout)
	}
}

// queryParams builds the Cypher parameter map: input parameters plus the
// source node identity. Graph values and internal keys are filtered at
// the gateway.
func (w *walkContext) queryParams() map[string]any {
	out := make(map[string]any, len(w.params)+1)
	for k, v := range w.params {
		out[k] = v
	}
	if w.source != nil {
		out["sourceNodeId"] = w.source.Identity()
	}
	return out
}

// sandboxEnv builds the sandbox environment: input parameters plus the
// source node (as its property map) and its identity.
func (w *walkContext) sandboxEnv() map[string]any {
	env := make(map[string]any, len(w.params)+2)
	for k, v := range w.params {
		env[k] = v
	}
	if w.source != nil {
		env["sourceNode"] = graph.Serialize(w.source)
		env["sourceNodeId"] = w.source.Identity()
	}
	return env
}

// snapshot returns the resolved variables in response shape:
// name → {"value": serialized}. Unresolved declarations are omitted;
// failed ones appear with a nil value, matching what snippets saw.
func (w *walkContext) snapshot() map[string]any {
	out := make(map[string]any, len(w.vars))
	names := make([]string, 0, len(w.vars))
	for name := range w.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := w.vars[name]
		if entry.state != varResolved && entry.state != varFailed {
			continue
		}
		out[name] = map[string]any{"value": graph.Serialize(entry.value)}
	}
	return out
}

// sourceIdentity returns the current source node identity, or nil.
func (w *walkContext) sourceIdentity() any {
	if w.source == nil {
		return nil
	}
	return w.source.Identity()
}
