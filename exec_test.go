// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlforge"
	"github.com/canonical/sqlforge/internal/bind"
)

type ExecSuite struct{}

var _ = Suite(&ExecSuite{})

// fakeDriver records every call it receives. Statements containing the
// failOn marker fail.
type fakeDriver struct {
	caps sqlforge.Capabilities

	execSQL   []string
	execArgs  [][]any
	querySQL  []string
	queryArgs [][]any

	cols   []string
	rows   [][]any
	failOn string
}

func (d *fakeDriver) Capabilities() sqlforge.Capabilities {
	return d.caps
}

func (d *fakeDriver) Query(ctx context.Context, sql string, args []any) (sqlforge.Rows, error) {
	d.querySQL = append(d.querySQL, sql)
	d.queryArgs = append(d.queryArgs, args)
	if d.failOn != "" && strings.Contains(sql, d.failOn) {
		return nil, fmt.Errorf("fake driver: query failed")
	}
	return &fakeRows{cols: d.cols, rows: d.rows}, nil
}

func (d *fakeDriver) Exec(ctx context.Context, sql string, args []any) (int64, error) {
	if d.failOn != "" && strings.Contains(sql, d.failOn) {
		return 0, fmt.Errorf("fake driver: exec failed")
	}
	d.execSQL = append(d.execSQL, sql)
	d.execArgs = append(d.execArgs, args)
	return 1, nil
}

func (d *fakeDriver) calls() int {
	return len(d.execSQL) + len(d.querySQL)
}

type fakeRows struct {
	cols []string
	rows [][]any
	pos  int
}

func (r *fakeRows) Columns() []string { return r.cols }

func (r *fakeRows) Next() ([]any, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *fakeRows) Close() error { return nil }

// batchDriver additionally supports a native batched call.
type batchDriver struct {
	fakeDriver
	batchSQL  []string
	batchSets [][][]any
}

func (d *batchDriver) ExecBatch(ctx context.Context, sql string, argSets [][]any) (int64, error) {
	d.batchSQL = append(d.batchSQL, sql)
	d.batchSets = append(d.batchSets, argSets)
	return int64(len(argSets)), nil
}

func (s *ExecSuite) TestSingleNamedToPositional(c *C) {
	// Scenario: generic dialect, named parameter, positional driver.
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}, cols: []string{"id"}}

	stmt, err := engine.Compile("SELECT * FROM t WHERE id = :id", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(context.Background(), drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"id": 42},
	})
	c.Assert(err, IsNil)

	c.Assert(drv.querySQL, DeepEquals, []string{"SELECT * FROM t WHERE id = ?"})
	c.Assert(drv.queryArgs[0], DeepEquals, []any{42})
}

func (s *ExecSuite) TestRepeatedNameExpands(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}

	stmt, err := engine.Compile("SELECT * FROM t WHERE a = :id OR b = :id", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"id": 7},
	})
	c.Assert(err, IsNil)

	c.Assert(drv.querySQL[0], Equals, "SELECT * FROM t WHERE a = ? OR b = ?")
	c.Assert(drv.queryArgs[0], DeepEquals, []any{7, 7})
}

func (s *ExecSuite) TestPositionalArgs(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Dollar}}

	stmt, err := engine.Compile("INSERT INTO t VALUES (?, ?)", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.S{"a", "b"},
	})
	c.Assert(err, IsNil)
	c.Assert(drv.execSQL[0], Equals, "INSERT INTO t VALUES ($1, $2)")
	c.Assert(drv.execArgs[0], DeepEquals, []any{"a", "b"})

	// Arity mismatches are binding errors.
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.S{"a"},
	})
	c.Assert(err, ErrorMatches, ".*statement has 2 parameters but 1 values were supplied")
}

func (s *ExecSuite) TestMissingParam(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}

	stmt, err := engine.Compile("SELECT * FROM t WHERE id = :id", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(nil, drv, sqlforge.Request{Stmt: stmt, Mode: sqlforge.Single})
	var missingErr *sqlforge.MissingParamError
	c.Assert(errors.As(err, &missingErr), Equals, true)
	c.Check(missingErr.Name, Equals, "id")
	// The binding failure happened before any driver call.
	c.Check(drv.calls(), Equals, 0)
}

func (s *ExecSuite) TestStyleResolution(c *C) {
	engine := sqlforge.NewEngine()

	// The driver's declared style wins over the dialect default.
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.PercentNamed}}
	stmt, err := engine.Compile("SELECT * FROM t WHERE id = :id", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"id": 1},
	})
	c.Assert(err, IsNil)
	c.Check(drv.querySQL[0], Equals, "SELECT * FROM t WHERE id = %(id)s")

	// The statement configuration wins over the driver.
	cfg := &sqlforge.Config{TargetStyle: sqlforge.ColonNamed}
	stmt, err = engine.Compile("SELECT * FROM t WHERE id = @id", sqlforge.Generic, cfg)
	c.Assert(err, IsNil)
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"id": 1},
	})
	c.Assert(err, IsNil)
	c.Check(drv.querySQL[1], Equals, "SELECT * FROM t WHERE id = :id")

	// A driver that declares nothing falls back to the dialect default.
	pgDrv := &fakeDriver{}
	stmt, err = engine.Compile("SELECT * FROM t WHERE id = :id", sqlforge.Postgres, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(nil, pgDrv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"id": 1},
	})
	c.Assert(err, IsNil)
	c.Check(pgDrv.querySQL[0], Equals, "SELECT * FROM t WHERE id = $1")
}

func (s *ExecSuite) TestManyConvertsOnce(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}

	stmt, err := engine.Compile("INSERT INTO t (id) VALUES (:id)", sqlforge.Generic, nil)
	c.Assert(err, IsNil)

	argSets := make([]any, 8)
	for i := range argSets {
		argSets[i] = sqlforge.M{"id": i}
	}
	res, err := engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Many, ArgSets: argSets,
	})
	c.Assert(err, IsNil)

	// One placeholder conversion, eight binding applications, eight
	// driver calls.
	c.Check(engine.Conversions(), Equals, uint64(1))
	c.Check(engine.Bindings(), Equals, uint64(8))
	c.Assert(drv.execSQL, HasLen, 8)
	for _, sql := range drv.execSQL {
		c.Check(sql, Equals, "INSERT INTO t (id) VALUES (?)")
	}
	c.Check(res.RowsAffected(), Equals, int64(8))

	// A second batch reuses the conversion.
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Many, ArgSets: argSets,
	})
	c.Assert(err, IsNil)
	c.Check(engine.Conversions(), Equals, uint64(1))
}

func (s *ExecSuite) TestManyUsesBatchExecer(c *C) {
	engine := sqlforge.NewEngine()
	drv := &batchDriver{fakeDriver: fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}}

	stmt, err := engine.Compile("INSERT INTO t (id) VALUES (:id)", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	res, err := engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Many,
		ArgSets: []any{sqlforge.M{"id": 1}, sqlforge.M{"id": 2}},
	})
	c.Assert(err, IsNil)

	// One native batched call, no per item calls.
	c.Assert(drv.batchSQL, DeepEquals, []string{"INSERT INTO t (id) VALUES (?)"})
	c.Assert(drv.batchSets[0], DeepEquals, [][]any{{1}, {2}})
	c.Check(drv.calls(), Equals, 0)
	c.Check(res.RowsAffected(), Equals, int64(2))
}

func (s *ExecSuite) TestManyReportsFailingItem(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}

	stmt, err := engine.Compile("DELETE FROM t WHERE name = :name", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	drv.failOn = "DELETE"
	// Fail from the first item on: the second set must not be attempted.
	_, err = engine.Execute(nil, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Many,
		ArgSets: []any{sqlforge.M{"name": "a"}, sqlforge.M{"name": "b"}},
	})
	var execErr *sqlforge.ExecutionError
	c.Assert(errors.As(err, &execErr), Equals, true)
	c.Check(execErr.Index, Equals, 0)
	c.Check(execErr.Succeeded, Equals, 0)
	c.Check(drv.execSQL, HasLen, 0)
}

func (s *ExecSuite) TestScriptStopsAtFailure(c *C) {
	// Scenario: a script where the second statement fails must report
	// one success, the failing index, and attempt nothing further.
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{failOn: "boom"}

	script := "CREATE TABLE t (a int); INSERT INTO boom VALUES (1); INSERT INTO t VALUES (2)"
	res, err := engine.Execute(nil, drv, sqlforge.Request{Mode: sqlforge.Script, Script: script})

	var execErr *sqlforge.ExecutionError
	c.Assert(errors.As(err, &execErr), Equals, true)
	c.Check(execErr.Index, Equals, 1)
	c.Check(execErr.Succeeded, Equals, 1)
	c.Check(res.StatementsRun(), Equals, 1)
	// Only the first statement reached the driver successfully, and the
	// third was never attempted.
	c.Assert(drv.execSQL, DeepEquals, []string{"CREATE TABLE t (a int)"})
}

func (s *ExecSuite) TestScriptSucceeds(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{}

	res, err := engine.Execute(nil, drv, sqlforge.Request{
		Mode:   sqlforge.Script,
		Script: "CREATE TABLE t (a int); INSERT INTO t VALUES (1);",
	})
	c.Assert(err, IsNil)
	c.Check(res.StatementsRun(), Equals, 2)
	c.Check(res.RowsAffected(), Equals, int64(2))
}

func (s *ExecSuite) TestBypassWrapping(c *C) {
	// Scenario: the same ambiguous values reach a bypass driver raw and
	// a non bypass driver wrapped.
	engine := sqlforge.NewEngine()
	args := sqlforge.M{"ids": []int{}, "name": "x"}

	stmt, err := engine.Compile("UPDATE t SET name = :name WHERE id IN :ids", sqlforge.Generic, nil)
	c.Assert(err, IsNil)

	bypass := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question, BypassWrapping: true}}
	_, err = engine.Execute(nil, bypass, sqlforge.Request{Stmt: stmt, Mode: sqlforge.Single, Args: args})
	c.Assert(err, IsNil)
	c.Assert(bypass.execArgs[0], DeepEquals, []any{"x", []int{}})

	wrapping := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}
	_, err = engine.Execute(nil, wrapping, sqlforge.Request{Stmt: stmt, Mode: sqlforge.Single, Args: args})
	c.Assert(err, IsNil)
	c.Assert(wrapping.execArgs[0], DeepEquals, []any{
		"x", bind.TypedValue{Category: bind.Sequence, V: []int{}},
	})
}

func (s *ExecSuite) TestQueryResult(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{
		caps: sqlforge.Capabilities{Style: sqlforge.Question},
		cols: []string{"id", "name"},
		rows: [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}},
	}

	stmt, err := engine.Compile("SELECT id, name FROM person", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	res, err := engine.Execute(nil, drv, sqlforge.Request{Stmt: stmt, Mode: sqlforge.Single})
	c.Assert(err, IsNil)

	c.Check(res.Columns(), DeepEquals, []string{"id", "name"})
	c.Check(res.Rows(), DeepEquals, [][]any{{int64(1), "Alice"}, {int64(2), "Bob"}})

	type person struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	var people []person
	c.Assert(res.ScanAll(&people), IsNil)
	c.Check(people, DeepEquals, []person{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}})
}

func (s *ExecSuite) TestCancellationBeforeDriverCall(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}

	stmt, err := engine.Compile("SELECT * FROM t WHERE id = :id", sqlforge.Generic, nil)
	c.Assert(err, IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Execute(ctx, drv, sqlforge.Request{
		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"id": 1},
	})
	c.Assert(err, Equals, context.Canceled)
	c.Check(drv.calls(), Equals, 0)
}

func (s *ExecSuite) TestTracerCalledOncePerBatch(c *C) {
	var events []sqlforge.TraceEvent
	engine := sqlforge.NewEngine(sqlforge.WithTracer(func(ev sqlforge.TraceEvent) {
		events = append(events, ev)
	}))
	drv := &fakeDriver{caps: sqlforge.Capabilities{Style: sqlforge.Question}}

	stmt, err := engine.Compile("INSERT INTO t (id) VALUES (:id)", sqlforge.Generic, nil)
	c.Assert(err, IsNil)
	argSets := make([]any, 100)
	for i := range argSets {
		argSets[i] = sqlforge.M{"id": i}
	}
	_, err = engine.Execute(nil, drv, sqlforge.Request{Stmt: stmt, Mode: sqlforge.Many, ArgSets: argSets})
	c.Assert(err, IsNil)

	// One event for the whole batch, not one per row.
	c.Assert(events, HasLen, 1)
	c.Check(events[0].Mode, Equals, sqlforge.Many)
	c.Check(events[0].Items, Equals, 100)
}

func (s *ExecSuite) TestUnknownMode(c *C) {
	engine := sqlforge.NewEngine()
	drv := &fakeDriver{}
	_, err := engine.Execute(nil, drv, sqlforge.Request{Mode: sqlforge.Mode(9)})
	c.Assert(err, ErrorMatches, "cannot execute: unknown mode 9")
}
