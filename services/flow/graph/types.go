// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// NodeKind classifies a graph node by its label set.
//
// The questionnaire graph dispatches on node shape: a traversal edge can
// point at a Question, an Action, or something else entirely (a Section
// jumped to, a container). Decoding the label set once into a NodeKind
// keeps that dispatch a switch instead of repeated label scans.
type NodeKind int

const (
	// KindOther is any node that is not a Section, Question, or Action.
	KindOther NodeKind = iota
	// KindSection is a questionnaire Section node.
	KindSection
	// KindQuestion is a user-facing Question node.
	KindQuestion
	// KindAction is a side-effect or control-flow Action node.
	KindAction
)

// String returns the label-style name of the kind.
func (k NodeKind) String() string {
	switch k {
	case KindSection:
		return "Section"
	case KindQuestion:
		return "Question"
	case KindAction:
		return "Action"
	default:
		return "Other"
	}
}

// Node is a decoded graph node.
//
// Both identity shapes of the store are preserved: the stable element id
// (opaque string, preferred) and the legacy numeric id. Downstream code
// must support either, because seeded graphs reference both forms.
type Node struct {
	// ID is the store's numeric node id.
	ID int64

	// ElementID is the store's stable element identifier. May be empty
	// for nodes decoded from legacy fixtures.
	ElementID string

	// Labels is the node's label set.
	Labels []string

	// Props holds the node's properties.
	Props map[string]any
}

// Identity returns the preferred identity of the node: the element id if
// present, otherwise the numeric id formatted as a string.
func (n *Node) Identity() string {
	if n.ElementID != "" {
		return n.ElementID
	}
	return strconv.FormatInt(n.ID, 10)
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Kind derives the NodeKind from the label set.
//
// Action is checked before Question: authored graphs occasionally carry
// both labels on migration leftovers, and an actionType property must win.
func (n *Node) Kind() NodeKind {
	switch {
	case n.HasLabel("Action"):
		return KindAction
	case n.HasLabel("Question"):
		return KindQuestion
	case n.HasLabel("Section"):
		return KindSection
	default:
		return KindOther
	}
}

// StringProp returns the named property as a string.
// Missing or non-string properties return "".
func (n *Node) StringProp(key string) string {
	if n == nil || n.Props == nil {
		return ""
	}
	s, _ := n.Props[key].(string)
	return s
}

// BoolProp returns the named property as a bool, defaulting to def when
// the property is missing or not a bool.
func (n *Node) BoolProp(key string, def bool) bool {
	if n == nil || n.Props == nil {
		return def
	}
	b, ok := n.Props[key].(bool)
	if !ok {
		return def
	}
	return b
}

// Relationship is a decoded graph relationship.
type Relationship struct {
	ID             int64
	ElementID      string
	Type           string
	StartElementID string
	EndElementID   string
	Props          map[string]any
}

// Path is a decoded graph path, reduced to the element ids of its nodes.
// The engine only ever needs path membership, never the full topology.
type Path struct {
	NodeElementIDs []string
}

// Record is a single materialized result row.
//
// Keys preserve the statement's column order; the "first column by
// convention" rule for created-node ids depends on that ordering.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value of the named column.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// First returns the first column's value, or nil for an empty record.
func (r Record) First() any {
	if len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

// AsMap returns the record as a column-name → value map.
func (r Record) AsMap() map[string]any {
	m := make(map[string]any, len(r.Keys))
	for i, k := range r.Keys {
		m[k] = r.Values[i]
	}
	return m
}

// decodeRecord converts a driver record into a Record, decoding any graph
// values (nodes, relationships, paths) into this package's types.
func decodeRecord(rec *neo4j.Record) Record {
	values := make([]any, len(rec.Values))
	for i, v := range rec.Values {
		values[i] = DecodeValue(v)
	}
	keys := make([]string, len(rec.Keys))
	copy(keys, rec.Keys)
	return Record{Keys: keys, Values: values}
}

// DecodeValue converts driver values into engine values.
//
// Nodes, relationships, and paths become *Node, *Relationship, and *Path;
// lists and maps are decoded recursively; everything else passes through.
func DecodeValue(v any) any {
	switch t := v.(type) {
	case dbtype.Node:
		return decodeNode(t)
	case dbtype.Relationship:
		return &Relationship{
			ID:             t.Id,
			ElementID:      t.ElementId,
			Type:           t.Type,
			StartElementID: t.StartElementId,
			EndElementID:   t.EndElementId,
			Props:          t.Props,
		}
	case dbtype.Path:
		ids := make([]string, len(t.Nodes))
		for i, n := range t.Nodes {
			ids[i] = n.ElementId
		}
		return &Path{NodeElementIDs: ids}
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DecodeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = DecodeValue(e)
		}
		return out
	default:
		return v
	}
}

func decodeNode(n dbtype.Node) *Node {
	return &Node{
		ID:        n.Id,
		ElementID: n.ElementId,
		Labels:    n.Labels,
		Props:     n.Props,
	}
}

// Serialize converts an engine value into a JSON-serializable primitive
// shape:
//
//   - *Node → its property map
//   - *Relationship → {type, start, end, properties}
//   - *Path → list of node element ids
//   - lists and maps recurse
//
// Used for template literal emission and for the vars snapshot on
// responses, mirroring how the store's values are presented to clients.
func Serialize(v any) any {
	switch t := v.(type) {
	case *Node:
		return Serialize(t.Props)
	case *Relationship:
		return map[string]any{
			"type":       t.Type,
			"start":      t.StartElementID,
			"end":        t.EndElementID,
			"properties": Serialize(t.Props),
		}
	case *Path:
		out := make([]any, len(t.NodeElementIDs))
		for i, id := range t.NodeElementIDs {
			out[i] = id
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Serialize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Serialize(e)
		}
		return out
	default:
		return v
	}
}
