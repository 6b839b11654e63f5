// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse

import "strings"

// SplitScript splits a script into its individual statements on top level
// semicolons. Semicolons inside string literals, quoted identifiers and
// comments do not split. Empty statements are dropped.
func SplitScript(script string) []string {
	var stmts []string
	start := 0
	s := &scanner{input: script}
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		switch {
		case c == '\'' || c == '"' || c == '`':
			// Validation is off, so skipQuoted cannot fail.
			_ = s.skipQuoted(c)
		case c == '$':
			_ = s.skipDollarQuoted()
		case c == '-' && s.peek(1) == '-':
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			_ = s.skipBlockComment()
		case c == ';':
			if stmt := strings.TrimSpace(s.input[start:s.pos]); stmt != "" {
				stmts = append(stmts, stmt)
			}
			s.pos++
			start = s.pos
		default:
			s.pos++
		}
	}
	if stmt := strings.TrimSpace(s.input[start:]); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}
