// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package cache implements the compiled statement cache: a stable
// fingerprint over (SQL text, dialect, option flags), a bounded LRU map
// from fingerprints to immutable compiled artifacts, and single flight
// filling so concurrent misses on one fingerprint compile once.
package cache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the cache key for a compiled statement. It is a fixed
// shape comparable value derived deterministically from the statement text,
// the dialect and the fingerprint-relevant option flags, so it can be used
// directly as a map key with no secondary hashing or allocation.
//
// Equal inputs always produce equal fingerprints. Distinct SQL texts can,
// with negligible probability, collide on Hash; Length discriminates most
// of those, and the cache resolves the remainder with an exact text
// comparison before an entry is ever reused.
type Fingerprint struct {
	Hash    uint64
	Length  uint32
	Dialect uint8
	Flags   uint8
}

// NewFingerprint computes the fingerprint of a statement. The content hash
// is a single xxhash pass over the text. Options that do not affect the
// compiled artifact must not be packed into flags, or they fragment the
// cache for no reason.
func NewFingerprint(sql string, dialect uint8, flags uint8) Fingerprint {
	return Fingerprint{
		Hash:    xxhash.Sum64String(sql),
		Length:  uint32(len(sql)),
		Dialect: dialect,
		Flags:   flags,
	}
}

// flightKey renders the fingerprint as a string for the single flight
// group. Only built on the miss path.
func (fp Fingerprint) flightKey() string {
	var b [14]byte
	binary.BigEndian.PutUint64(b[0:], fp.Hash)
	binary.BigEndian.PutUint32(b[8:], fp.Length)
	b[12] = fp.Dialect
	b[13] = fp.Flags
	return string(b[:])
}
