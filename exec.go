// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge

import (
	"context"
	"fmt"
	"io"

	"github.com/canonical/sqlforge/internal/bind"
	"github.com/canonical/sqlforge/internal/convert"
	"github.com/canonical/sqlforge/internal/parse"
	"github.com/canonical/sqlforge/internal/shape"
)

// Mode selects how a request is executed. It is explicit on the request
// and never inferred from the SQL text.
type Mode int

const (
	// Single executes one statement with one bound value sequence.
	Single Mode = iota
	// Many executes one statement once per supplied parameter set. The
	// placeholder conversion happens once, not per set; drivers
	// implementing [BatchExecer] receive a single batched call.
	Many
	// Script executes a sequence of statements in order, with no
	// structured parameter binding. On failure execution stops and the
	// error reports the failing index.
	Script
)

var modeNames = []string{"single", "many", "script"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Request is one execution of a compiled statement.
type Request struct {
	// Stmt is the compiled statement. Ignored in Script mode.
	Stmt *Statement
	// Mode selects single, many or script execution.
	Mode Mode
	// Args supplies the parameter values for Single mode: an [M], a plain
	// map with string keys, or an [S] matched positionally against the
	// canonical parameter list.
	Args any
	// ArgSets supplies one Args value per execution for Many mode.
	ArgSets []any
	// Script is the raw statement sequence for Script mode.
	Script string
}

// Result is the uniform outcome of a request, regardless of the driver's
// native return shape.
type Result struct {
	columns      []string
	rows         [][]any
	rowsAffected int64
	statements   int
}

// Columns returns the column names of a row returning statement.
func (r *Result) Columns() []string {
	return r.columns
}

// Rows returns the raw rows with no field name resolution. This is the
// bare path: no per row shaping work has been done.
func (r *Result) Rows() [][]any {
	return r.rows
}

// RowsAffected returns the total number of rows changed, as reported by
// the driver.
func (r *Result) RowsAffected() int64 {
	return r.rowsAffected
}

// StatementsRun returns how many statements completed. Only meaningful for
// script requests.
func (r *Result) StatementsRun() int {
	return r.statements
}

// ScanAll maps every row into dest, a pointer to a slice of structs with
// `db` tags. The column to field correspondence is resolved once for the
// whole result set, not per row.
func (r *Result) ScanAll(dest any) error {
	return shape.ScanAll(r.columns, r.rows, dest)
}

// TraceEvent describes one execution for the engine tracer.
type TraceEvent struct {
	SQL   string
	Mode  Mode
	Items int
}

// Execute runs a request on a driver. Cancellation is checked before the
// statement is converted and before each driver call; once a driver call
// is in flight the engine waits for its outcome rather than interrupting
// it.
func (e *Engine) Execute(ctx context.Context, drv Driver, req Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch req.Mode {
	case Single:
		return e.executeSingle(ctx, drv, req)
	case Many:
		return e.executeMany(ctx, drv, req)
	case Script:
		return e.executeScript(ctx, drv, req)
	default:
		return nil, fmt.Errorf("cannot execute: unknown mode %d", req.Mode)
	}
}

// resolveStyle picks the target placeholder style: the statement
// configuration wins, then the driver's declared style, then the dialect
// default.
func resolveStyle(s *Statement, caps Capabilities) PlaceholderStyle {
	if s.cfg.TargetStyle != StyleDriver {
		return s.cfg.TargetStyle
	}
	if caps.Style != StyleDriver {
		return caps.Style
	}
	return s.dialect.defaultStyle()
}

func (e *Engine) executeSingle(ctx context.Context, drv Driver, req Request) (*Result, error) {
	if req.Stmt == nil {
		return nil, fmt.Errorf("cannot execute: nil statement")
	}
	caps := drv.Capabilities()
	rendered, err := e.render(req.Stmt, resolveStyle(req.Stmt, caps))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := e.bindValues(req.Stmt, req.Args, caps)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.tracing {
		e.tracer(TraceEvent{SQL: rendered, Mode: Single, Items: 1})
	}

	if req.Stmt.IsQuery() {
		rows, err := drv.Query(ctx, rendered, values)
		if err != nil {
			return nil, &ExecutionError{SQL: rendered, Err: err}
		}
		return materialize(rows, rendered)
	}
	n, err := drv.Exec(ctx, rendered, values)
	if err != nil {
		return nil, &ExecutionError{SQL: rendered, Err: err}
	}
	return &Result{rowsAffected: n, statements: 1}, nil
}

func (e *Engine) executeMany(ctx context.Context, drv Driver, req Request) (*Result, error) {
	if req.Stmt == nil {
		return nil, fmt.Errorf("cannot execute: nil statement")
	}
	caps := drv.Capabilities()
	// One conversion for the whole batch.
	rendered, err := e.render(req.Stmt, resolveStyle(req.Stmt, caps))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bound := make([][]any, len(req.ArgSets))
	for i, args := range req.ArgSets {
		if bound[i], err = e.bindValues(req.Stmt, args, caps); err != nil {
			return nil, &ExecutionError{SQL: rendered, Index: i, Succeeded: 0, Err: err}
		}
	}
	if e.tracing {
		e.tracer(TraceEvent{SQL: rendered, Mode: Many, Items: len(bound)})
	}

	if be, ok := drv.(BatchExecer); ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := be.ExecBatch(ctx, rendered, bound)
		if err != nil {
			return nil, &ExecutionError{SQL: rendered, Err: err}
		}
		return &Result{rowsAffected: n, statements: len(bound)}, nil
	}

	var total int64
	for i, values := range bound {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := drv.Exec(ctx, rendered, values)
		if err != nil {
			return nil, &ExecutionError{SQL: rendered, Index: i, Succeeded: i, Err: err}
		}
		total += n
	}
	return &Result{rowsAffected: total, statements: len(bound)}, nil
}

func (e *Engine) executeScript(ctx context.Context, drv Driver, req Request) (*Result, error) {
	stmts := parse.SplitScript(req.Script)
	if e.tracing {
		e.tracer(TraceEvent{SQL: req.Script, Mode: Script, Items: len(stmts)})
	}
	var total int64
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return &Result{rowsAffected: total, statements: i}, err
		}
		n, err := drv.Exec(ctx, stmt, nil)
		if err != nil {
			return &Result{rowsAffected: total, statements: i},
				&ExecutionError{SQL: stmt, Index: i, Succeeded: i, Err: err}
		}
		total += n
	}
	return &Result{rowsAffected: total, statements: len(stmts)}, nil
}

// bindValues produces the occurrence ordered, wrap planned value sequence
// for one execution.
func (e *Engine) bindValues(s *Statement, args any, caps Capabilities) ([]any, error) {
	supplied, err := valueMap(s, args)
	if err != nil {
		return nil, err
	}
	values, err := convert.Bind(s.parsed, supplied, s.cfg.strict())
	if err != nil {
		return nil, err
	}
	e.metrics.bindings.Add(1)
	return bind.PlanAll(values, caps.BypassWrapping), nil
}

// valueMap normalizes the supplied arguments to a name to value map. An S
// is matched positionally against the canonical parameter list.
func valueMap(s *Statement, args any) (map[string]any, error) {
	switch args := args.(type) {
	case nil:
		return nil, nil
	case M:
		return args, nil
	case map[string]any:
		return args, nil
	case S:
		names := s.parsed.Names
		if len(args) != len(names) {
			return nil, fmt.Errorf("cannot bind parameters: statement has %d parameters but %d values were supplied", len(names), len(args))
		}
		m := make(map[string]any, len(args))
		for i, v := range args {
			m[names[i]] = v
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cannot bind parameters: unsupported argument type %T", args)
	}
}

// materialize drains a row stream into a Result.
func materialize(rows Rows, rendered string) (*Result, error) {
	defer rows.Close()
	res := &Result{columns: rows.Columns(), statements: 1}
	for {
		row, err := rows.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return nil, &ExecutionError{SQL: rendered, Err: err}
		}
		res.rows = append(res.rows, row)
	}
}
