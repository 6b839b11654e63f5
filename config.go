// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge

import "sync"

// ValidationLevel selects how much scrutiny the parser applies at compile
// time.
type ValidationLevel uint8

const (
	// ValidationSyntax rejects statements with unterminated literals or
	// comments. It is the default.
	ValidationSyntax ValidationLevel = iota
	// ValidationNone accepts anything; malformed statements are left for
	// the database to reject.
	ValidationNone
	// ValidationStrict additionally rejects empty statements and, at
	// binding time, supplied values the statement does not reference.
	ValidationStrict
)

// Config is a reusable compilation options bundle. Configs are interned:
// callers may build one per call site without reallocation cost, identical
// values resolve to a single canonical pointer.
//
// The zero value is the default configuration.
type Config struct {
	// Validation is the compile time validation level.
	Validation ValidationLevel
	// StripComments removes comments from the compiled statement text.
	StripComments bool
	// NoCache compiles without consulting or populating the statement
	// cache.
	NoCache bool
	// TargetStyle overrides the placeholder style declared by the driver.
	// Left as StyleDriver, the driver decides.
	TargetStyle PlaceholderStyle
	// TraceSQL marks the statement's executions for the engine tracer.
	// Purely cosmetic: it does not affect the compiled artifact and is
	// excluded from the fingerprint.
	TraceSQL bool
}

var defaultConfig = &Config{}

var configMutex sync.RWMutex
var configCache = map[Config]*Config{{}: defaultConfig}

// intern returns the canonical pointer for cfg, allocating it on first
// sight. A nil cfg is the default configuration.
func intern(cfg *Config) *Config {
	if cfg == nil {
		return defaultConfig
	}
	configMutex.RLock()
	canonical, ok := configCache[*cfg]
	configMutex.RUnlock()
	if ok {
		return canonical
	}

	configMutex.Lock()
	defer configMutex.Unlock()
	if canonical, ok := configCache[*cfg]; ok {
		return canonical
	}
	canonical = new(Config)
	*canonical = *cfg
	configCache[*cfg] = canonical
	return canonical
}

// fingerprintFlags packs the fields that change the compiled artifact into
// one byte for the fingerprint. NoCache and TraceSQL are deliberately
// excluded: neither changes what compilation produces, and folding them in
// would fragment the cache.
func (c *Config) fingerprintFlags() uint8 {
	flags := uint8(c.Validation) & 0x3
	if c.StripComments {
		flags |= 1 << 2
	}
	flags |= uint8(c.TargetStyle) << 3
	return flags
}

// strict reports whether unused supplied values are rejected at binding
// time.
func (c *Config) strict() bool {
	return c.Validation == ValidationStrict
}
