// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds the cache when the caller does not.
const DefaultMaxEntries = 1024

// IntegrityError reports a fingerprint collision: a cached entry matched on
// fingerprint but its SQL text differs from the requested text. Serving the
// cached artifact would execute the wrong statement, so lookups fail
// instead.
type IntegrityError struct {
	Fingerprint Fingerprint
	Cached      string
	Requested   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("statement cache integrity violation: fingerprint %x matches a different statement", e.Fingerprint.Hash)
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

type entry[V any] struct {
	// sql is the exact statement text the entry was compiled from. It is
	// the collision backstop: an entry is only served after this text
	// compares equal to the requested text.
	sql   string
	value V
}

// Cache maps fingerprints to immutable compiled artifacts. Reads are
// concurrent; misses for the same fingerprint are collapsed into a single
// compile via a per key flight, while other fingerprints proceed
// unaffected. Size is bounded with LRU eviction. Failed compiles are never
// inserted.
type Cache[V any] struct {
	entries *lru.Cache[Fingerprint, *entry[V]]
	group   singleflight.Group
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New returns a cache holding at most maxEntries artifacts. A zero or
// negative maxEntries selects DefaultMaxEntries.
func New[V any](maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	// lru.New only fails for a non positive size, which is checked above.
	entries, _ := lru.New[Fingerprint, *entry[V]](maxEntries)
	return &Cache[V]{entries: entries}
}

// GetOrCompile returns the artifact cached under fp, compiling and
// inserting it on a miss. Concurrent callers missing on the same
// fingerprint share one compile; callers for other fingerprints are not
// blocked. compile errors are returned to every waiting caller and leave
// the cache unchanged.
func (c *Cache[V]) GetOrCompile(fp Fingerprint, sql string, compile func() (V, error)) (V, error) {
	if e, ok := c.entries.Get(fp); ok {
		if e.sql != sql {
			var zero V
			return zero, &IntegrityError{Fingerprint: fp, Cached: e.sql, Requested: sql}
		}
		c.hits.Add(1)
		return e.value, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(fp.flightKey(), func() (any, error) {
		// A winner of a previous flight may have inserted the entry
		// between our lookup and joining the flight.
		if e, ok := c.entries.Get(fp); ok {
			if e.sql != sql {
				return nil, &IntegrityError{Fingerprint: fp, Cached: e.sql, Requested: sql}
			}
			return e.value, nil
		}
		value, err := compile()
		if err != nil {
			return nil, err
		}
		c.entries.Add(fp, &entry[V]{sql: sql, value: value})
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Stats returns the current size and hit and miss counts.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Size:   c.entries.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Invalidate drops the entry for fp, reporting whether one was present.
func (c *Cache[V]) Invalidate(fp Fingerprint) bool {
	return c.entries.Remove(fp)
}

// InvalidateAll drops every entry. Counters are not reset.
func (c *Cache[V]) InvalidateAll() {
	c.entries.Purge()
}
