// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge_test

import (
	"context"
	"database/sql"
	"math/big"

	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlforge"
)

// IntegrationSuite runs the whole pipeline against a real SQLite database
// through the database/sql adapter.
type IntegrationSuite struct{}

var _ = Suite(&IntegrationSuite{})

type Person struct {
	ID     int64   `db:"id"`
	Name   string  `db:"name"`
	Height float64 `db:"height"`
}

func (s *IntegrationSuite) openDriver(c *C) *sqlforge.DBDriver {
	db, err := sql.Open("sqlite3", "file:test.db?cache=shared&mode=memory&testName="+c.TestName())
	c.Assert(err, IsNil)
	return sqlforge.NewDBDriver(db, sqlforge.Capabilities{Style: sqlforge.Question})
}

func (s *IntegrationSuite) createTable(c *C, engine *sqlforge.Engine, drv sqlforge.Driver) {
	res, err := engine.Execute(context.Background(), drv, sqlforge.Request{
		Mode: sqlforge.Script,
		Script: `
CREATE TABLE person (
	id integer PRIMARY KEY,
	name text,
	height real
);
INSERT INTO person (id, name, height) VALUES (1, 'Alice', 1.68);
INSERT INTO person (id, name, height) VALUES (2, 'Bob', 1.82);`,
	})
	c.Assert(err, IsNil)
	c.Assert(res.StatementsRun(), Equals, 3)
}

func (s *IntegrationSuite) TestRoundTrip(c *C) {
	engine := sqlforge.NewEngine()
	drv := s.openDriver(c)
	defer drv.PlainDB().Close()
	s.createTable(c, engine, drv)

	insert, err := engine.Compile(
		"INSERT INTO person (id, name, height) VALUES (:id, :name, :height)",
		sqlforge.SQLite, nil,
	)
	c.Assert(err, IsNil)
	res, err := engine.Execute(context.Background(), drv, sqlforge.Request{
		Stmt: insert, Mode: sqlforge.Single,
		Args: sqlforge.M{"id": 3, "name": "Carol", "height": 1.74},
	})
	c.Assert(err, IsNil)
	c.Check(res.RowsAffected(), Equals, int64(1))

	query, err := engine.Compile(
		"SELECT id, name, height FROM person WHERE height > :min ORDER BY id",
		sqlforge.SQLite, nil,
	)
	c.Assert(err, IsNil)
	res, err = engine.Execute(context.Background(), drv, sqlforge.Request{
		Stmt: query, Mode: sqlforge.Single, Args: sqlforge.M{"min": 1.7},
	})
	c.Assert(err, IsNil)

	var people []Person
	c.Assert(res.ScanAll(&people), IsNil)
	c.Assert(people, DeepEquals, []Person{
		{ID: 2, Name: "Bob", Height: 1.82},
		{ID: 3, Name: "Carol", Height: 1.74},
	})
}

func (s *IntegrationSuite) TestManyAgainstDatabase(c *C) {
	engine := sqlforge.NewEngine()
	drv := s.openDriver(c)
	defer drv.PlainDB().Close()
	s.createTable(c, engine, drv)

	insert, err := engine.Compile(
		"INSERT INTO person (id, name, height) VALUES (:id, :name, :height)",
		sqlforge.SQLite, nil,
	)
	c.Assert(err, IsNil)
	res, err := engine.Execute(context.Background(), drv, sqlforge.Request{
		Stmt: insert, Mode: sqlforge.Many,
		ArgSets: []any{
			sqlforge.M{"id": 10, "name": "Dai", "height": 1.62},
			sqlforge.M{"id": 11, "name": "Eve", "height": 1.79},
			sqlforge.M{"id": 12, "name": "Fred", "height": 1.71},
		},
	})
	c.Assert(err, IsNil)
	c.Check(res.RowsAffected(), Equals, int64(3))
	// The whole batch cost one placeholder conversion.
	c.Check(engine.Conversions(), Equals, uint64(1))

	count, err := engine.Compile("SELECT count(*) AS n FROM person", sqlforge.SQLite, nil)
	c.Assert(err, IsNil)
	res, err = engine.Execute(context.Background(), drv, sqlforge.Request{Stmt: count, Mode: sqlforge.Single})
	c.Assert(err, IsNil)
	c.Assert(res.Rows(), HasLen, 1)
	c.Check(res.Rows()[0][0], Equals, int64(5))
}

func (s *IntegrationSuite) TestDecimalCarrierThroughDatabaseSQL(c *C) {
	engine := sqlforge.NewEngine()
	drv := s.openDriver(c)
	defer drv.PlainDB().Close()

	_, err := engine.Execute(context.Background(), drv, sqlforge.Request{
		Mode:   sqlforge.Script,
		Script: "CREATE TABLE amounts (v text)",
	})
	c.Assert(err, IsNil)

	// A big.Int is wrapped in a type preserving carrier; through
	// database/sql the carrier renders as an exact string, never a
	// float.
	insert, err := engine.Compile("INSERT INTO amounts (v) VALUES (:v)", sqlforge.SQLite, nil)
	c.Assert(err, IsNil)
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	_, err = engine.Execute(context.Background(), drv, sqlforge.Request{
		Stmt: insert, Mode: sqlforge.Single, Args: sqlforge.M{"v": huge},
	})
	c.Assert(err, IsNil)

	query, err := engine.Compile("SELECT v FROM amounts", sqlforge.SQLite, nil)
	c.Assert(err, IsNil)
	res, err := engine.Execute(context.Background(), drv, sqlforge.Request{Stmt: query, Mode: sqlforge.Single})
	c.Assert(err, IsNil)
	c.Assert(res.Rows(), HasLen, 1)
	c.Check(res.Rows()[0][0], Equals, "123456789012345678901234567890")
}

func (s *IntegrationSuite) TestExecutionErrorFromDatabase(c *C) {
	engine := sqlforge.NewEngine()
	drv := s.openDriver(c)
	defer drv.PlainDB().Close()
	s.createTable(c, engine, drv)

	// Duplicate primary key.
	insert, err := engine.Compile("INSERT INTO person (id, name) VALUES (:id, :name)", sqlforge.SQLite, nil)
	c.Assert(err, IsNil)
	_, err = engine.Execute(context.Background(), drv, sqlforge.Request{
		Stmt: insert, Mode: sqlforge.Single, Args: sqlforge.M{"id": 1, "name": "Alice again"},
	})
	c.Assert(err, NotNil)
	execErr, ok := err.(*sqlforge.ExecutionError)
	c.Assert(ok, Equals, true)
	c.Check(execErr.Unwrap(), NotNil)
}
