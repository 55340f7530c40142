// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// fakeRunner records executed statements and serves canned results.
type fakeRunner struct {
	lastQuery  string
	lastParams map[string]any
	records    []graph.Record
	err        error
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) ([]graph.Record, error) {
	f.lastQuery = query
	f.lastParams = params
	return f.records, f.err
}

func (f *fakeRunner) RunCapped(ctx context.Context, query string, params map[string]any, _ int) ([]graph.Record, error) {
	return f.Run(ctx, query, params)
}

func TestCypher_Evaluate_SubstitutesAndNormalizes(t *testing.T) {
	runner := &fakeRunner{records: []graph.Record{
		{Keys: []string{"n"}, Values: []any{int64(1)}},
	}}
	c := NewCypher(runner)
	r := &fakeResolver{vars: map[string]any{"applicantId": "a-17"}}

	got, err := c.Evaluate(context.Background(),
		"MATCH (a:Applicant {id: {{ applicantId }}, status: 'active'}) RETURN count(a)",
		r, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	assert.Equal(t,
		`MATCH (a:Applicant {id: "a-17", status: "active"}) RETURN count(a)`,
		runner.lastQuery)
	assert.Equal(t, map[string]any{"x": 1}, runner.lastParams)
}

func TestCollapse(t *testing.T) {
	node := &graph.Node{ElementID: "4:db:1", Labels: []string{"Question"}}

	tests := []struct {
		name    string
		records []graph.Record
		want    any
	}{
		{
			name:    "no rows",
			records: nil,
			want:    nil,
		},
		{
			name: "one row one column",
			records: []graph.Record{
				{Keys: []string{"n"}, Values: []any{node}},
			},
			want: node,
		},
		{
			name: "one row with value column",
			records: []graph.Record{
				{Keys: []string{"id", "value"}, Values: []any{"q1", int64(7)}},
			},
			want: int64(7),
		},
		{
			name: "one row several columns",
			records: []graph.Record{
				{Keys: []string{"a", "b"}, Values: []any{int64(1), int64(2)}},
			},
			want: map[string]any{"a": int64(1), "b": int64(2)},
		},
		{
			name: "several rows one column",
			records: []graph.Record{
				{Keys: []string{"n"}, Values: []any{"x"}},
				{Keys: []string{"n"}, Values: []any{"y"}},
			},
			want: []any{"x", "y"},
		},
		{
			name: "several rows several columns",
			records: []graph.Record{
				{Keys: []string{"a", "b"}, Values: []any{int64(1), int64(2)}},
				{Keys: []string{"a", "b"}, Values: []any{int64(3), int64(4)}},
			},
			want: []any{
				map[string]any{"a": int64(1), "b": int64(2)},
				map[string]any{"a": int64(3), "b": int64(4)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Collapse(tt.records))
		})
	}
}
