// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package convert rewrites a parsed statement's canonical parameter list
// into a driver specific placeholder string, and binds supplied values into
// the occurrence ordered sequence the rendered SQL expects. Rendering
// depends only on the statement and the target style, so callers memoize it
// per statement and reuse it for every row of a batch; binding is the only
// per execution work.
package convert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/canonical/sqlforge/internal/parse"
)

// Style is a driver placeholder syntax.
type Style int

const (
	// StyleDriver is the unset style: defer to the driver. It cannot be
	// rendered.
	StyleDriver Style = iota
	// Question renders positional '?' markers (SQLite, MySQL).
	Question
	// Dollar renders numbered '$1' markers (PostgreSQL). Every occurrence
	// gets its own number, repeated names included.
	Dollar
	// ColonNamed renders ':name' markers (Oracle).
	ColonNamed
	// PercentNamed renders '%(name)s' markers (pyformat style drivers).
	PercentNamed

	NumStyles
)

var styleNames = [NumStyles]string{"driver", "question", "dollar", "colon-named", "percent-named"}

func (s Style) String() string {
	if s < 0 || s >= NumStyles {
		return fmt.Sprintf("style(%d)", int(s))
	}
	return styleNames[s]
}

// UnsupportedStyleError reports a target style with no converter.
type UnsupportedStyleError struct {
	Style Style
}

func (e *UnsupportedStyleError) Error() string {
	return fmt.Sprintf("unsupported placeholder style %s", e.Style)
}

// MissingParamError reports a parameter referenced by the statement with no
// supplied value.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("cannot bind parameters: no value supplied for %q", e.Name)
}

// ExtraParamError reports supplied values not referenced by the statement,
// under strict binding.
type ExtraParamError struct {
	Names []string
}

func (e *ExtraParamError) Error() string {
	return fmt.Sprintf("cannot bind parameters: unused values supplied: %s", strings.Join(e.Names, ", "))
}

// Render walks the canonical parameter list and emits the marker for each
// occurrence in the target style. A named parameter appearing N times
// produces N markers. The result is independent of any supplied values and
// must be computed once per statement and style, never per row.
func Render(st *parse.Statement, style Style) (string, error) {
	if style <= StyleDriver || style >= NumStyles {
		return "", &UnsupportedStyleError{Style: style}
	}
	var b strings.Builder
	b.Grow(len(st.Raw) + 8*len(st.Occurrences))
	for _, seg := range st.Segments {
		if seg.Param < 0 {
			b.WriteString(seg.Text)
			continue
		}
		name := st.Names[st.Occurrences[seg.Param]]
		switch style {
		case Question:
			b.WriteByte('?')
		case Dollar:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(seg.Param + 1))
		case ColonNamed:
			b.WriteByte(':')
			b.WriteString(name)
		case PercentNamed:
			b.WriteString("%(")
			b.WriteString(name)
			b.WriteString(")s")
		}
	}
	return b.String(), nil
}

// Bind produces the occurrence ordered value sequence for one execution of
// the statement. A repeated name expands to multiple output values bound to
// the same supplied value. A referenced name with no supplied value is an
// error; unreferenced supplied values are an error only under strict.
func Bind(st *parse.Statement, values map[string]any, strict bool) ([]any, error) {
	for _, name := range st.Names {
		if _, ok := values[name]; !ok {
			return nil, &MissingParamError{Name: name}
		}
	}
	if strict && len(values) > len(st.Names) {
		extras := make([]string, 0, len(values)-len(st.Names))
		for k := range values {
			if !referenced(st.Names, k) {
				extras = append(extras, k)
			}
		}
		sort.Strings(extras)
		return nil, &ExtraParamError{Names: extras}
	}
	out := make([]any, len(st.Occurrences))
	for i, nameIdx := range st.Occurrences {
		out[i] = values[st.Names[nameIdx]]
	}
	return out, nil
}

func referenced(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
