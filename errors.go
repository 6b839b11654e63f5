// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlforge

import (
	"fmt"

	"github.com/canonical/sqlforge/internal/cache"
	"github.com/canonical/sqlforge/internal/convert"
	"github.com/canonical/sqlforge/internal/parse"
)

// SyntaxError reports SQL the parser rejected. A statement that fails to
// compile is never inserted into the cache.
type SyntaxError = parse.SyntaxError

// UnsupportedDialectError reports a requested placeholder style with no
// converter.
type UnsupportedDialectError = convert.UnsupportedStyleError

// MissingParamError reports a parameter referenced by the statement with no
// supplied value.
type MissingParamError = convert.MissingParamError

// ExtraParamError reports supplied values the statement does not reference,
// under strict validation.
type ExtraParamError = convert.ExtraParamError

// CacheIntegrityError reports a fingerprint collision caught by the exact
// text comparison. It is fatal for the call: the cached artifact belongs to
// a different statement and is never served silently.
type CacheIntegrityError = cache.IntegrityError

// ExecutionError wraps a driver failure with the statement it occurred on.
// For batch and script modes, Index is the failing item or statement and
// Succeeded counts the items completed before it; nothing after Index was
// attempted.
type ExecutionError struct {
	SQL       string
	Index     int
	Succeeded int
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Index > 0 || e.Succeeded > 0 {
		return fmt.Sprintf("cannot execute statement %d (%d succeeded): %s", e.Index, e.Succeeded, e.Err)
	}
	return fmt.Sprintf("cannot execute statement: %s", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
