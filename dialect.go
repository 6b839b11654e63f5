// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge

import (
	"github.com/canonical/sqlforge/internal/convert"
)

// PlaceholderStyle is the marker syntax a driver expects for bound
// parameters.
type PlaceholderStyle = convert.Style

const (
	// StyleDriver defers to the placeholder style declared by the driver,
	// falling back to the dialect default. It is the zero value and cannot
	// itself be rendered.
	StyleDriver = convert.StyleDriver
	// Question is positional '?' markers.
	Question = convert.Question
	// Dollar is numbered '$1' markers.
	Dollar = convert.Dollar
	// ColonNamed is named ':name' markers.
	ColonNamed = convert.ColonNamed
	// PercentNamed is named '%(name)s' markers.
	PercentNamed = convert.PercentNamed
)

// Dialect identifies a SQL variant and driver family with its own
// placeholder style and type quirks. The dialect is part of the statement
// fingerprint: the same text compiled under two dialects yields two cache
// entries.
type Dialect uint8

const (
	Generic Dialect = iota
	SQLite
	Postgres
	MySQL
	Oracle
)

var dialectNames = []string{"generic", "sqlite", "postgres", "mysql", "oracle"}

func (d Dialect) String() string {
	if int(d) < len(dialectNames) {
		return dialectNames[d]
	}
	return "unknown"
}

// defaultStyle is the placeholder style used when neither the statement
// configuration nor the driver declares one.
func (d Dialect) defaultStyle() PlaceholderStyle {
	switch d {
	case Postgres:
		return Dollar
	case Oracle:
		return ColonNamed
	default:
		return Question
	}
}

// hashComments reports whether '#' starts a line comment in this dialect.
func (d Dialect) hashComments() bool {
	return d == MySQL
}

// DialectForDriver maps common database/sql driver names to a dialect.
// Unrecognized names get Generic.
func DialectForDriver(name string) Dialect {
	switch name {
	case "sqlite3", "sqlite":
		return SQLite
	case "postgres", "pgx", "pq":
		return Postgres
	case "mysql":
		return MySQL
	case "oci8", "godror", "oracle":
		return Oracle
	default:
		return Generic
	}
}
