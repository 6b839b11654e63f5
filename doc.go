// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
SQLforge is a statement compilation and execution pipeline that sits between
application code issuing SQL text with parameters and database drivers with
different placeholder syntaxes and native type capabilities.

A statement is parsed and validated once, cached under a stable fingerprint
derived from its text, dialect and compilation options, and reused by every
subsequent caller. At execution time the compiled statement's canonical
parameter list is rewritten into the driver's placeholder style, the
supplied values are bound in occurrence order, and the call is dispatched
through a uniform hot path.

# Compiling

	engine := sqlforge.NewEngine()
	stmt, err := engine.Compile(
		"SELECT id, name FROM person WHERE id = :id",
		sqlforge.Generic, nil,
	)

Named parameters are written :name or @name; positional markers are written
?. Compiling the same statement again returns the cached artifact: under
concurrency only one caller per fingerprint runs the parser, the rest wait
on that result.

# Executing

	res, err := engine.Execute(ctx, drv, sqlforge.Request{
		Stmt: stmt,
		Mode: sqlforge.Single,
		Args: sqlforge.M{"id": 42},
	})

The driver declares its placeholder style and whether it wants raw native
values (bypass) or type preserving carriers for ambiguous values such as
empty collections and precision sensitive decimals. Any database/sql driver
can be adapted with [NewDBDriver].

Batch execution converts the statement once and binds each parameter set
against the same rendered SQL:

	res, err := engine.Execute(ctx, drv, sqlforge.Request{
		Stmt:    stmt,
		Mode:    sqlforge.Many,
		ArgSets: []any{sqlforge.M{"id": 1}, sqlforge.M{"id": 2}},
	})

Scripts are sequences of statements without structured parameter binding,
executed in order; on failure the result reports the index of the failing
statement and how many succeeded before it.

# Results

Row returning statements materialize into a [Result]. The rows can be read
bare, or mapped into structs using `db` tags, in which case the column to
field correspondence is resolved once per result set:

	type Person struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	var people []Person
	err = res.ScanAll(&people)

SQLforge does not manage connections or pooling, does not retry failed
executions, and treats the SQL itself as opaque: joins, planning and
transaction semantics belong to the database.
*/
package sqlforge
