// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge

import (
	"context"
	"database/sql"
	"io"
)

// Capabilities is what a driver declares about itself. The engine consults
// it once per execution, never per row.
type Capabilities struct {
	// Style is the placeholder syntax the driver expects.
	Style PlaceholderStyle
	// BypassWrapping declares that the driver interprets native Go values
	// correctly without help. When set, values of every category are
	// passed raw and no type preserving carriers are allocated.
	BypassWrapping bool
}

// Rows is the raw row stream a driver returns. Next returns io.EOF after
// the last row. Close must be called when iteration stops early.
type Rows interface {
	Columns() []string
	Next() ([]any, error)
	Close() error
}

// Driver executes rendered SQL. Connection and pool management belong to
// the driver; the engine holds it only for the duration of one call.
type Driver interface {
	Capabilities() Capabilities
	Query(ctx context.Context, sql string, args []any) (Rows, error)
	Exec(ctx context.Context, sql string, args []any) (int64, error)
}

// BatchExecer is an optional driver interface. Drivers that support a
// native batched call implement it; Many mode then issues one call instead
// of one per parameter set.
type BatchExecer interface {
	ExecBatch(ctx context.Context, sql string, argSets [][]any) (int64, error)
}

// DBDriver adapts a database/sql DB to the Driver interface, so any
// registered database/sql driver plugs into the pipeline.
type DBDriver struct {
	db   *sql.DB
	caps Capabilities
}

// NewDBDriver wraps db. The caller declares the capabilities of the
// underlying driver; a StyleDriver placeholder style falls back to the
// statement's dialect default at execution time.
func NewDBDriver(db *sql.DB, caps Capabilities) *DBDriver {
	return &DBDriver{db: db, caps: caps}
}

// PlainDB returns the underlying database object.
func (d *DBDriver) PlainDB() *sql.DB {
	return d.db
}

func (d *DBDriver) Capabilities() Capabilities {
	return d.caps
}

func (d *DBDriver) Query(ctx context.Context, query string, args []any) (Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &dbRows{rows: rows, cols: cols}, nil
}

func (d *DBDriver) Exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	// Not every driver reports affected rows; treat that as zero.
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

type dbRows struct {
	rows *sql.Rows
	cols []string
}

func (r *dbRows) Columns() []string {
	return r.cols
}

func (r *dbRows) Next() ([]any, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	values := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *dbRows) Close() error {
	return r.rows.Close()
}
