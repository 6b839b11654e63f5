// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package parse contains the default statement parser. It scans SQL text
// once, extracts the named and positional parameters while skipping string
// literals, quoted identifiers and comments, and classifies the statement
// as row-returning or not. The output is the canonical form consumed by the
// placeholder converter: an ordered list of text and parameter segments.
package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// Options controls the scanner. The values are derived from the statement
// configuration and the dialect by the caller.
type Options struct {
	// StripComments omits comments from the canonical text instead of
	// copying them through verbatim.
	StripComments bool
	// HashComments treats '#' as starting a single line comment. MySQL
	// style dialects support this, most others do not.
	HashComments bool
	// Validate rejects unterminated string literals, quoted identifiers
	// and block comments. When false the scanner consumes them to the end
	// of the input without error.
	Validate bool
}

// Segment is a span of a parsed statement. A segment is either literal SQL
// text or a single parameter occurrence, never both.
type Segment struct {
	// Text is the literal SQL text of the segment. It is empty for
	// parameter segments.
	Text string
	// Param is the occurrence number of the parameter starting at this
	// segment, or -1 for a text segment.
	Param int
}

// Statement is the canonical parsed form of one SQL statement.
//
// Names holds the distinct parameter names in order of first appearance.
// Positional '?' markers are given the synthetic names p1, p2, and so on.
// Occurrences maps each parameter occurrence, in statement order, to an
// index into Names: a named parameter that appears twice contributes two
// occurrences pointing at the same name.
type Statement struct {
	Raw         string
	Segments    []Segment
	Names       []string
	Occurrences []int
	// Query reports whether the statement returns rows. It is decided
	// here, at parse time, so execution never inspects the SQL text.
	Query bool
	// LeadingKeyword is the first bare keyword of the statement, upper
	// cased. Empty when the statement contains no keyword at all.
	LeadingKeyword string
}

// SyntaxError reports a statement the scanner rejected.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cannot parse statement: %s (at position %d)", e.Msg, e.Pos)
}

// queryKeywords are the leading keywords of row-returning statements.
var queryKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"SHOW":    true,
	"EXPLAIN": true,
	"PRAGMA":  true,
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse scans the input and returns its canonical form.
func (p *Parser) Parse(input string, opts Options) (*Statement, error) {
	s := &scanner{input: input, opts: opts}
	return s.run()
}

// scanner walks the input byte by byte. SQL parameter markers and the
// quoting constructs that must be skipped are all ASCII, so multi-byte
// runes can pass through untouched.
type scanner struct {
	input string
	opts  Options

	pos int
	// textStart is the start of the text span that has not yet been
	// flushed into a segment.
	textStart int
	// buf accumulates the current text segment. It is only used when
	// comment stripping forces the text to differ from the input, so the
	// common path slices the input directly.
	buf strings.Builder
	// stripped reports whether buf is in use for the current text span.
	stripped bool

	segments    []Segment
	names       []string
	nameIndex   map[string]int
	occurrences []int
	positional  int
}

func (s *scanner) run() (*Statement, error) {
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		switch {
		case c == '\'' || c == '"' || c == '`':
			if err := s.skipQuoted(c); err != nil {
				return nil, err
			}
		case c == '$':
			if err := s.skipDollarQuoted(); err != nil {
				return nil, err
			}
		case c == '-' && s.peek(1) == '-':
			s.skipLineComment()
		case c == '#' && s.opts.HashComments:
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			if err := s.skipBlockComment(); err != nil {
				return nil, err
			}
		case c == ':':
			// A double colon is a cast, not a parameter.
			if s.peek(1) == ':' {
				s.pos += 2
			} else if isNameStart(s.peek(1)) {
				s.appendParam(s.scanName())
			} else {
				s.pos++
			}
		case c == '@':
			if isNameStart(s.peek(1)) {
				s.appendParam(s.scanName())
			} else {
				s.pos++
			}
		case c == '?':
			s.positional++
			s.flushText(s.pos)
			s.pos++
			s.textStart = s.pos
			s.appendParam("p" + strconv.Itoa(s.positional))
		default:
			s.pos++
		}
	}
	s.flushText(s.pos)

	st := &Statement{
		Raw:         s.input,
		Segments:    s.segments,
		Names:       s.names,
		Occurrences: s.occurrences,
	}
	st.LeadingKeyword = leadingKeyword(st.Segments)
	st.Query = queryKeywords[st.LeadingKeyword]
	return st, nil
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.input) {
		return s.input[s.pos+n]
	}
	return 0
}

// flushText closes the pending text span at end and appends it as a text
// segment if it is non-empty.
func (s *scanner) flushText(end int) {
	if s.stripped {
		s.buf.WriteString(s.input[s.textStart:end])
		text := s.buf.String()
		s.buf.Reset()
		s.stripped = false
		if text != "" {
			s.segments = append(s.segments, Segment{Text: text, Param: -1})
		}
		return
	}
	if end > s.textStart {
		s.segments = append(s.segments, Segment{Text: s.input[s.textStart:end], Param: -1})
	}
}

// scanName consumes a ':' or '@' prefixed parameter name and returns it.
// The prefix character is at s.pos on entry.
func (s *scanner) scanName() string {
	s.flushText(s.pos)
	start := s.pos + 1
	i := start
	for i < len(s.input) && isNameByte(s.input[i]) {
		i++
	}
	s.pos = i
	s.textStart = i
	return s.input[start:i]
}

func (s *scanner) appendParam(name string) {
	if s.nameIndex == nil {
		s.nameIndex = map[string]int{}
	}
	idx, ok := s.nameIndex[name]
	if !ok {
		idx = len(s.names)
		s.names = append(s.names, name)
		s.nameIndex[name] = idx
	}
	s.segments = append(s.segments, Segment{Param: len(s.occurrences)})
	s.occurrences = append(s.occurrences, idx)
}

// skipQuoted consumes a quoted literal or identifier delimited by quote.
// A doubled quote is an escape and stays inside the literal.
func (s *scanner) skipQuoted(quote byte) error {
	start := s.pos
	s.pos++
	for s.pos < len(s.input) {
		if s.input[s.pos] == quote {
			if s.peek(1) == quote {
				s.pos += 2
				continue
			}
			s.pos++
			return nil
		}
		s.pos++
	}
	if s.opts.Validate {
		return &SyntaxError{Pos: start, Msg: fmt.Sprintf("unterminated quote %c", quote)}
	}
	return nil
}

// skipDollarQuoted consumes a PostgreSQL $tag$ ... $tag$ string. A '$' that
// does not open a dollar quote is ordinary text.
func (s *scanner) skipDollarQuoted() error {
	start := s.pos
	i := s.pos + 1
	for i < len(s.input) && isNameByte(s.input[i]) {
		i++
	}
	if i >= len(s.input) || s.input[i] != '$' {
		s.pos++
		return nil
	}
	tag := s.input[s.pos : i+1]
	end := strings.Index(s.input[i+1:], tag)
	if end < 0 {
		if s.opts.Validate {
			return &SyntaxError{Pos: start, Msg: "unterminated dollar quoted string"}
		}
		s.pos = len(s.input)
		return nil
	}
	s.pos = i + 1 + end + len(tag)
	return nil
}

// skipLineComment consumes a comment up to, but not including, the
// terminating newline, so stripping a comment never joins two lines.
func (s *scanner) skipLineComment() {
	start := s.pos
	end := strings.IndexByte(s.input[s.pos:], '\n')
	if end < 0 {
		s.pos = len(s.input)
	} else {
		s.pos += end
	}
	s.stripComment(start)
}

func (s *scanner) skipBlockComment() error {
	start := s.pos
	end := strings.Index(s.input[s.pos+2:], "*/")
	if end < 0 {
		if s.opts.Validate {
			return &SyntaxError{Pos: start, Msg: "unterminated block comment"}
		}
		s.pos = len(s.input)
	} else {
		s.pos += 2 + end + 2
	}
	s.stripComment(start)
	return nil
}

// stripComment removes the comment spanning [start, s.pos) from the pending
// text span when comment stripping is on.
func (s *scanner) stripComment(start int) {
	if !s.opts.StripComments {
		return
	}
	s.buf.WriteString(s.input[s.textStart:start])
	s.stripped = true
	s.textStart = s.pos
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// leadingKeyword returns the first bare keyword of the statement, skipping
// leading whitespace, parentheses and comments. Comments must be skipped
// here too: without comment stripping they remain in the segment text.
func leadingKeyword(segments []Segment) string {
	for _, seg := range segments {
		if seg.Param >= 0 {
			return ""
		}
		text := seg.Text
		for {
			text = strings.TrimLeft(text, " \t\r\n(")
			if strings.HasPrefix(text, "--") {
				if i := strings.IndexByte(text, '\n'); i >= 0 {
					text = text[i+1:]
					continue
				}
				text = ""
			} else if strings.HasPrefix(text, "/*") {
				if i := strings.Index(text[2:], "*/"); i >= 0 {
					text = text[2+i+2:]
					continue
				}
				text = ""
			}
			break
		}
		if text == "" {
			continue
		}
		i := 0
		for i < len(text) && isNameByte(text[i]) {
			i++
		}
		if i == 0 {
			return ""
		}
		return strings.ToUpper(text[:i])
	}
	return ""
}
