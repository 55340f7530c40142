// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestFilterParams(t *testing.T) {
	node := &Node{ID: 9, ElementID: "4:db:9"}

	tests := []struct {
		name   string
		params map[string]any
		want   map[string]any
	}{
		{
			name:   "nil params",
			params: nil,
			want:   map[string]any{},
		},
		{
			name:   "internal keys stripped",
			params: map[string]any{"applicantId": "a1", "__sourceNode": node},
			want:   map[string]any{"applicantId": "a1"},
		},
		{
			name:   "node replaced by identity",
			params: map[string]any{"src": node},
			want:   map[string]any{"src": "4:db:9"},
		},
		{
			name:   "relationship dropped",
			params: map[string]any{"rel": &Relationship{Type: "PRECEDES"}, "keep": int64(1)},
			want:   map[string]any{"keep": int64(1)},
		},
		{
			name: "nested structures filtered",
			params: map[string]any{
				"outer": map[string]any{"__private": 1, "n": node},
				"list":  []any{node, "x", &Path{}},
			},
			want: map[string]any{
				"outer": map[string]any{"n": "4:db:9"},
				"list":  []any{"4:db:9", "x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterParams(tt.params)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterParams() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_withDefaults(t *testing.T) {
	got := Config{URI: "neo4j://db:7687"}.withDefaults()
	if got.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", got.MaxRetries)
	}
	if got.InitialBackoff != 200*time.Millisecond {
		t.Errorf("InitialBackoff = %v", got.InitialBackoff)
	}
	if got.MaxBackoff != 2*time.Second {
		t.Errorf("MaxBackoff = %v", got.MaxBackoff)
	}
	if got.RowCap != 100 {
		t.Errorf("RowCap = %d, want 100", got.RowCap)
	}

	custom := Config{MaxRetries: 5, RowCap: 10}.withDefaults()
	if custom.MaxRetries != 5 || custom.RowCap != 10 {
		t.Errorf("explicit settings overridden: %+v", custom)
	}
}

func TestGateway_backoff(t *testing.T) {
	g := &Gateway{config: DefaultConfig()}

	// Jitter is ±25%, so attempt 1 stays within [150ms, 250ms].
	for i := 0; i < 20; i++ {
		d := g.backoff(1)
		if d < 150*time.Millisecond || d > 250*time.Millisecond {
			t.Fatalf("backoff(1) = %v, outside jitter window", d)
		}
	}

	// Deep attempts are capped at MaxBackoff.
	for i := 0; i < 20; i++ {
		if d := g.backoff(10); d > g.config.MaxBackoff {
			t.Fatalf("backoff(10) = %v, exceeds cap %v", d, g.config.MaxBackoff)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("syntax error near MATCH"), false},
	}

	for _, tt := range tests {
		if got := isTransient(tt.err); got != tt.want {
			t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
