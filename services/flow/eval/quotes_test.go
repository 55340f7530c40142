// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eval

import "testing"

func TestNormalizeQuotes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no quotes",
			input: "MATCH (n) RETURN n",
			want:  "MATCH (n) RETURN n",
		},
		{
			name:  "simple single quotes",
			input: "MATCH (n {id: 'abc'}) RETURN n",
			want:  `MATCH (n {id: "abc"}) RETURN n`,
		},
		{
			name:  "doubled single quote escape",
			input: "RETURN 'it''s fine'",
			want:  `RETURN "it's fine"`,
		},
		{
			name:  "double quote inside single literal",
			input: `RETURN 'say "hi"'`,
			want:  `RETURN "say \"hi\""`,
		},
		{
			name:  "existing double-quoted literal untouched",
			input: `RETURN "don't touch"`,
			want:  `RETURN "don't touch"`,
		},
		{
			name:  "mixed literals",
			input: `MATCH (n {a: 'x', b: "y"}) RETURN n`,
			want:  `MATCH (n {a: "x", b: "y"}) RETURN n`,
		},
		{
			name:  "multiple single literals",
			input: "RETURN 'a', 'b'",
			want:  `RETURN "a", "b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuotes(tt.input); got != tt.want {
				t.Errorf("NormalizeQuotes(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
