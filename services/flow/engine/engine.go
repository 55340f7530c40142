// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements depth-first traversal of questionnaire
// graphs: given a section and input parameters, it walks PRECEDES and
// TRIGGERS edges in authored order, gates each edge on its askWhen
// predicate, skips already-answered questions, executes actions, and
// stops at the next question the caller should ask.
//
// A walk is single-threaded and owns all of its mutable state; engines
// are safe for concurrent walks because they hold only immutable
// components and the shared connection pool.
package engine

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// DefaultContainerRelation is the typed relation linking a parent node to
// the container instances that hold repeated answers (address history and
// the like).
const DefaultContainerRelation = "HAS_HISTORY_PROPERTY"

// DefaultContainerLabel is the label carried by container instances. A
// source node with this label is a repeatable-group context: answered
// checks against it only consider its own datapoints.
const DefaultContainerLabel = "HistoryProperty"

// DefaultMaxDepth bounds traversal recursion. Authored graphs are
// shallow; hitting this limit means a cycle.
const DefaultMaxDepth = 128

// Config holds engine tuning knobs.
type Config struct {
	// ContainerRelation names the parent→container relation used by the
	// answered-question checker. Default: DefaultContainerRelation.
	ContainerRelation string

	// ContainerLabel names the label identifying container nodes.
	// Default: DefaultContainerLabel.
	ContainerLabel string

	// MaxDepth bounds traversal recursion. Default: DefaultMaxDepth.
	MaxDepth int

	// SnippetTimeout bounds ad-hoc sandbox snippets (askWhen,
	// sourceNode). Default: eval.DefaultSandboxTimeout.
	SnippetTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ContainerRelation == "" {
		c.ContainerRelation = DefaultContainerRelation
	}
	if c.ContainerLabel == "" {
		c.ContainerLabel = DefaultContainerLabel
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.SnippetTimeout <= 0 {
		c.SnippetTimeout = eval.DefaultSandboxTimeout
	}
	return c
}

// Engine walks questionnaire graphs.
type Engine struct {
	runner  graph.Runner
	sandbox *eval.Sandbox
	cypher  *eval.Cypher
	logger  *slog.Logger
	config  Config
}

// New builds an engine on top of a graph runner.
func New(runner graph.Runner, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()
	return &Engine{
		runner:  runner,
		sandbox: eval.NewSandbox(config.SnippetTimeout),
		cypher:  eval.NewCypher(runner),
		logger:  logger,
		config:  config,
	}
}

// VarDef is one variable declaration from a section or edge `variables`
// list. Exactly one of Cypher or Python is expected to be set.
type VarDef struct {
	Name      string `json:"name"`
	Cypher    string `json:"cypher,omitempty"`
	Python    string `json:"python,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// snippet returns the declaration's snippet text for warning payloads.
func (d VarDef) snippet() string {
	if d.Cypher != "" {
		return d.Cypher
	}
	return d.Python
}

// timeout returns the declared timeout, defaulting to the variable
// evaluation bound.
func (d VarDef) timeout() time.Duration {
	if d.TimeoutMs > 0 {
		return time.Duration(d.TimeoutMs) * time.Millisecond
	}
	return eval.VariableTimeout
}

// parseVarDefs decodes a `variables` property. The property is stored as
// a JSON array of declarations, either as a JSON string or as an
// already-decoded list. Malformed declarations are skipped.
func parseVarDefs(raw any) ([]VarDef, error) {
	var data []byte
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		data = []byte(t)
	default:
		var err error
		data, err = json.Marshal(t)
		if err != nil {
			return nil, err
		}
	}
	var defs []VarDef
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, err
	}
	out := defs[:0]
	for _, d := range defs {
		if d.Name == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Warning is a non-fatal problem recorded during a walk.
type Warning struct {
	Variable  string `json:"variable,omitempty"`
	Message   string `json:"message"`
	Evaluator string `json:"evaluator,omitempty"`
}

// Result is the outcome of a walk: either the next question to ask, a
// jump to another section, or completion of the current one.
type Result struct {
	// SectionID echoes the walked section.
	SectionID string `json:"sectionId"`

	// Question is {"questionId": ...} for a stop response, nil otherwise.
	Question map[string]any `json:"question"`

	// NextSectionID is set by a GotoSection action.
	NextSectionID string `json:"nextSectionId,omitempty"`

	// CreatedNodeIDs collects identifiers returned by CreateNode actions,
	// including those merged across a returnImmediately=false chain.
	CreatedNodeIDs []any `json:"createdNodeIds"`

	// Completed reports that the section has no further questions.
	Completed bool `json:"completed"`

	// RequestVariables echoes the walk's input parameters.
	RequestVariables map[string]any `json:"requestVariables"`

	// SourceNode is the identity of the final source node, or nil.
	SourceNode any `json:"sourceNode"`

	// Vars is the resolved-variable snapshot: name → {"value": ...}.
	Vars map[string]any `json:"vars,omitempty"`

	// Warnings lists the non-fatal problems encountered.
	Warnings []Warning `json:"warnings,omitempty"`
}
