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

import "strings"

// NormalizeQuotes rewrites single-quoted string literals in a Cypher
// statement to double-quoted ones.
//
// Authored snippets routinely arrive with single quotes, while the
// substitution step emits JSON (double-quoted) literals; mixing the two
// in one statement breaks parsing on some server versions. The rewrite
// is escape-aware:
//
//	'it''s' → "it's"    (doubled single quote is an escape)
//	'say "hi"' → "say \"hi\""
//
// Content inside existing double-quoted literals is left untouched.
func NormalizeQuotes(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	runes := []rune(query)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch r {
		case '"':
			// Copy a double-quoted literal verbatim.
			b.WriteRune(r)
			i++
			for i < len(runes) {
				b.WriteRune(runes[i])
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
					b.WriteRune(runes[i])
				} else if runes[i] == '"' {
					i++
					break
				}
				i++
			}
		case '\'':
			// Rewrite a single-quoted literal.
			b.WriteRune('"')
			i++
			for i < len(runes) {
				c := runes[i]
				if c == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						b.WriteRune('\'')
						i += 2
						continue
					}
					i++
					break
				}
				if c == '\\' && i+1 < len(runes) {
					b.WriteRune(c)
					i++
					b.WriteRune(runes[i])
					i++
					continue
				}
				if c == '"' {
					b.WriteString(`\"`)
					i++
					continue
				}
				b.WriteRune(c)
				i++
			}
			b.WriteRune('"')
		default:
			b.WriteRune(r)
			i++
		}
	}
	return b.String()
}
