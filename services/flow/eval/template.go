// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eval executes the two snippet languages authored on
// questionnaire graphs: Cypher statements run against the store, and
// sandboxed expressions evaluated in-process.
//
// Both languages share a template layer: `{{ name }}` and
// `{{ name.path }}` placeholders are replaced with the value of the
// named variable or input parameter before the snippet runs. Variable
// resolution is lazy and delegated back to the caller through the
// Resolver interface, so referencing a variable in a snippet is what
// triggers its computation.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// Lang identifies the snippet language of an authored expression.
type Lang int

const (
	// LangSandbox is the in-process expression language. Snippets with a
	// "python:" prefix (a legacy authoring convention) and snippets with
	// no prefix at all are sandbox expressions.
	LangSandbox Lang = iota

	// LangCypher is a store-side Cypher statement, marked "cypher:".
	LangCypher
)

// Split classifies a snippet and strips its language prefix.
// Prefix matching is case-insensitive and tolerates leading whitespace.
func Split(snippet string) (Lang, string) {
	s := strings.TrimSpace(snippet)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "cypher:"):
		return LangCypher, strings.TrimSpace(s[len("cypher:"):])
	case strings.HasPrefix(lower, "python:"):
		return LangSandbox, strings.TrimSpace(s[len("python:"):])
	default:
		return LangSandbox, s
	}
}

// Resolver supplies values for template placeholders.
//
// The traversal context implements this: ResolveVar looks up an input
// parameter or lazily computes a declared variable, and Warnf records a
// non-fatal resolution problem on the walk.
type Resolver interface {
	// ResolveVar returns the value of the named parameter or variable.
	// Unknown names resolve to nil without error; only fatal conditions
	// (evaluator timeout) surface as errors.
	ResolveVar(ctx context.Context, name string) (any, error)

	// Warnf records a warning visible on the walk result.
	Warnf(format string, args ...any)
}

// Target selects how substituted values are rendered into the snippet.
type Target int

const (
	// TargetCypher renders values as Cypher/JSON literals (null for nil).
	TargetCypher Target = iota
	// TargetSandbox renders values as sandbox literals (nil for nil).
	TargetSandbox
)

// placeholderRE matches {{ name }} and {{ name.path.to.field }}.
var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// Substitute replaces every {{ placeholder }} in text with a literal
// rendering of the resolved value.
//
// The first path segment is resolved through r; the remaining segments
// descend into map keys and node properties. A placeholder that cannot
// be resolved renders as null/nil and records a warning; it never fails
// the substitution. The only errors returned are fatal resolver errors.
func Substitute(ctx context.Context, text string, r Resolver, target Target) (string, error) {
	matches := placeholderRE.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		path := text[m[2]:m[3]]

		value, err := resolvePath(ctx, r, path)
		if err != nil {
			return "", err
		}
		b.WriteString(renderLiteral(value, target))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// References reports whether text contains any template placeholder.
func References(text string) bool {
	return placeholderRE.MatchString(text)
}

// BarePlaceholder returns the placeholder path when text is exactly one
// placeholder and nothing else, e.g. "{{ parentNode }}". Source-node
// snippets of that shape are resolved as values, not substituted as
// literals.
func BarePlaceholder(text string) (string, bool) {
	m := placeholderRE.FindStringSubmatchIndex(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(text)
	if m[0] != 0 || m[1] != len(trimmed) {
		return "", false
	}
	return trimmed[m[2]:m[3]], true
}

// ResolvePath resolves a dotted placeholder path: the root through the
// resolver, the rest by descending maps and node properties.
func ResolvePath(ctx context.Context, r Resolver, path string) (any, error) {
	return resolvePath(ctx, r, path)
}

func resolvePath(ctx context.Context, r Resolver, path string) (any, error) {
	segments := strings.Split(path, ".")
	value, err := r.ResolveVar(ctx, segments[0])
	if err != nil {
		return nil, err
	}

	for _, seg := range segments[1:] {
		switch t := value.(type) {
		case *graph.Node:
			v, ok := t.Props[seg]
			if !ok {
				r.Warnf("template path %q: node has no property %q", path, seg)
				return nil, nil
			}
			value = v
		case map[string]any:
			v, ok := t[seg]
			if !ok {
				r.Warnf("template path %q: no key %q", path, seg)
				return nil, nil
			}
			value = v
		case nil:
			return nil, nil
		default:
			r.Warnf("template path %q: cannot descend into %T at %q", path, value, seg)
			return nil, nil
		}
	}
	return value, nil
}

// renderLiteral renders a resolved value as a snippet literal. Graph
// values are reduced to primitive shapes first, then JSON-encoded; JSON
// string escaping is valid in both target languages.
func renderLiteral(value any, target Target) string {
	value = graph.Serialize(value)
	if value == nil {
		if target == TargetSandbox {
			return "nil"
		}
		return "null"
	}
	data, err := json.Marshal(value)
	if err != nil {
		// Unencodable values degrade to their string form.
		data, _ = json.Marshal(fmt.Sprintf("%v", value))
	}
	return string(data)
}
