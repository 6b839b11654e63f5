// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge

import (
	"sync/atomic"

	"github.com/canonical/sqlforge/internal/cache"
	"github.com/canonical/sqlforge/internal/convert"
	"github.com/canonical/sqlforge/internal/parse"
)

// M is a convenience type for supplying named parameter values. M is not a
// special type, any map with string keys can be converted to it.
//
// Example:
//
//	stmt := engine.MustCompile("UPDATE people SET name = :name", sqlforge.Generic, nil)
//	_, err := engine.Execute(ctx, drv, sqlforge.Request{
//		Stmt: stmt, Mode: sqlforge.Single, Args: sqlforge.M{"name": "Fred"},
//	})
type M map[string]any

// S supplies parameter values by position, matched against the statement's
// canonical parameter list in order.
type S []any

// Fingerprint is the stable cache key of a compiled statement, derived
// deterministically from the statement text, the dialect and the
// compilation options.
type Fingerprint = cache.Fingerprint

// CacheStats is a snapshot of the statement cache: current size and
// cumulative hit and miss counts.
type CacheStats = cache.Stats

// ParsedStatement is the canonical parsed form produced by a Parser: the
// statement text split into literal and parameter segments, with the
// ordered parameter list.
type ParsedStatement = parse.Statement

// Segment is one span of a ParsedStatement.
type Segment = parse.Segment

// Parser turns SQL text into its canonical parsed form. The engine ships a
// default implementation; a different one can be injected with
// [WithParser].
type Parser interface {
	Parse(sql string, dialect Dialect, cfg *Config) (*ParsedStatement, error)
}

// DefaultParser returns the parser the engine uses when none is injected:
// a dialect aware scanner that extracts named and positional parameters
// while skipping literals, quoted identifiers and comments.
func DefaultParser() Parser {
	return defaultParser{parser: parse.NewParser()}
}

// defaultParser adapts the internal scanner to the Parser interface,
// deriving scanner options from the dialect and configuration.
type defaultParser struct {
	parser *parse.Parser
}

func (p defaultParser) Parse(sql string, dialect Dialect, cfg *Config) (*ParsedStatement, error) {
	return p.parser.Parse(sql, parse.Options{
		StripComments: cfg.StripComments,
		HashComments:  dialect.hashComments(),
		Validate:      cfg.Validation != ValidationNone,
	})
}

// Statement is an immutable compiled statement. It is owned by the cache
// and shared read-only by all concurrent callers; a Statement can be
// executed any number of times, on any driver.
type Statement struct {
	fp      Fingerprint
	parsed  *parse.Statement
	dialect Dialect
	cfg     *Config

	// rendered memoizes the per style placeholder conversion, so a
	// Statement is converted at most once per target style however many
	// rows or executions reuse it. Indexed by PlaceholderStyle.
	rendered [convert.NumStyles]atomic.Pointer[string]
}

// Fingerprint returns the statement's cache key.
func (s *Statement) Fingerprint() Fingerprint {
	return s.fp
}

// SQL returns the statement text as compiled, before placeholder
// conversion.
func (s *Statement) SQL() string {
	return s.parsed.Raw
}

// Params returns the distinct parameter names in canonical order.
// Positional markers appear under their synthetic names p1, p2, ...
func (s *Statement) Params() []string {
	return s.parsed.Names
}

// IsQuery reports whether the statement returns rows. Decided at compile
// time; execution never inspects the SQL text.
func (s *Statement) IsQuery() bool {
	return s.parsed.Query
}

// Engine is the compilation and execution pipeline. The statement cache is
// its only shared mutable state; an Engine is safe for concurrent use.
type Engine struct {
	parser Parser
	cache  *cache.Cache[*Statement]

	// tracing gates the tracer with a single boolean load, consulted once
	// per execution, never per row.
	tracing bool
	tracer  func(TraceEvent)

	metrics metrics
}

// metrics counts pipeline work for diagnostics and tests. Conversions
// counts actual placeholder renders (memoized reuse does not count);
// bindings counts value sequence applications.
type metrics struct {
	conversions atomic.Uint64
	bindings    atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithParser replaces the default statement parser.
func WithParser(p Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithCacheSize bounds the statement cache to n compiled statements,
// evicting least recently used entries beyond it.
func WithCacheSize(n int) Option {
	return func(e *Engine) { e.cache = cache.New[*Statement](n) }
}

// WithTracer installs fn as the execution tracer. The tracer is invoked
// once per execution, not per row, and only when installed.
func WithTracer(fn func(TraceEvent)) Option {
	return func(e *Engine) {
		e.tracer = fn
		e.tracing = fn != nil
	}
}

// NewEngine returns an Engine with the default parser and a cache of
// [cache.DefaultMaxEntries] statements.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		parser: defaultParser{parser: parse.NewParser()},
		cache:  cache.New[*Statement](0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile parses and validates sql once and returns the compiled
// statement. Repeat compilations of the same (sql, dialect, cfg) return
// the cached artifact; under concurrency only one caller per fingerprint
// runs the parser and the rest wait on that result. Failed compiles are
// never cached.
func (e *Engine) Compile(sql string, dialect Dialect, cfg *Config) (*Statement, error) {
	cfg = intern(cfg)
	fp := cache.NewFingerprint(sql, uint8(dialect), cfg.fingerprintFlags())
	if cfg.NoCache {
		return e.compile(sql, dialect, cfg, fp)
	}
	return e.cache.GetOrCompile(fp, sql, func() (*Statement, error) {
		return e.compile(sql, dialect, cfg, fp)
	})
}

// MustCompile is the same as [Engine.Compile] except that it panics on
// error.
func (e *Engine) MustCompile(sql string, dialect Dialect, cfg *Config) *Statement {
	s, err := e.Compile(sql, dialect, cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (e *Engine) compile(sql string, dialect Dialect, cfg *Config, fp Fingerprint) (*Statement, error) {
	parsed, err := e.parser.Parse(sql, dialect, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Validation == ValidationStrict && parsed.LeadingKeyword == "" {
		return nil, &SyntaxError{Pos: 0, Msg: "empty statement"}
	}
	return &Statement{fp: fp, parsed: parsed, dialect: dialect, cfg: cfg}, nil
}

// render returns the statement's SQL in the given placeholder style,
// computing the conversion on first use per style and reusing it for every
// subsequent execution and batch row.
func (e *Engine) render(s *Statement, style PlaceholderStyle) (string, error) {
	if style <= StyleDriver || style >= convert.NumStyles {
		return "", &UnsupportedDialectError{Style: style}
	}
	if p := s.rendered[style].Load(); p != nil {
		return *p, nil
	}
	rendered, err := convert.Render(s.parsed, style)
	if err != nil {
		return "", err
	}
	e.metrics.conversions.Add(1)
	s.rendered[style].Store(&rendered)
	return rendered, nil
}

// Stats returns a snapshot of the statement cache.
func (e *Engine) Stats() CacheStats {
	return e.cache.Stats()
}

// Invalidate drops the cached statement with the given fingerprint,
// reporting whether one was cached. Compiled Statement values already held
// by callers remain valid.
func (e *Engine) Invalidate(fp Fingerprint) bool {
	return e.cache.Invalidate(fp)
}

// InvalidateAll empties the statement cache.
func (e *Engine) InvalidateAll() {
	e.cache.InvalidateAll()
}
