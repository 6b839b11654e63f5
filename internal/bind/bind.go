// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package bind decides, per parameter value, whether the raw value can be
// handed to the driver as is or must be wrapped in a type preserving
// carrier. The decision is a table lookup over a closed set of value
// categories, resolved once at package init, not a chain of checks per
// call. Drivers that interpret native values correctly declare bypass and
// skip wrapping entirely.
package bind

import (
	"database/sql/driver"
	"math/big"
	"reflect"
	"time"
)

// Category is the runtime category of a parameter value. The set is
// closed: every value maps to exactly one category.
type Category int

const (
	Null Category = iota
	Bool
	Int
	Float
	Text
	Bytes
	Time
	Decimal
	Sequence
	Typed

	numCategories
)

var categoryNames = [numCategories]string{
	"null", "bool", "int", "float", "text", "bytes", "time", "decimal", "sequence", "typed",
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return "invalid"
	}
	return categoryNames[c]
}

// Strategy is one row of the dispatch table: wrap the value in a carrier,
// or pass it through raw.
type Strategy struct {
	Wrap bool
}

// strategies is the static dispatch table. Only categories whose SQL
// intended type is ambiguous from the raw value are wrapped: a decimal
// loses precision if coerced through a float, and an empty collection
// carries no element type at all.
var strategies = [numCategories]Strategy{
	Decimal:  {Wrap: true},
	Sequence: {Wrap: true},
}

// ratDigits is the decimal precision used when rendering a big.Rat for the
// driver.
const ratDigits = 38

// TypedValue is the type preserving carrier for ambiguous values. It
// satisfies driver.Valuer so it degrades gracefully through database/sql.
type TypedValue struct {
	Category Category
	V        any
}

// Value renders the carried value for drivers that only understand native
// driver.Value types. Richer drivers can inspect the carrier directly.
func (tv TypedValue) Value() (driver.Value, error) {
	switch tv.Category {
	case Decimal:
		switch d := tv.V.(type) {
		case *big.Int:
			return d.String(), nil
		case *big.Float:
			return d.Text('f', -1), nil
		case *big.Rat:
			return d.FloatString(ratDigits), nil
		}
	case Sequence:
		// An empty collection has no element type, bind SQL NULL.
		if reflect.ValueOf(tv.V).Len() == 0 {
			return nil, nil
		}
	}
	return driver.Value(tv.V), nil
}

// Categorize maps a value to its category with a single type switch over
// the closed set. Unrecognized types are Typed and pass through raw, which
// lets driver specific values (driver.Valuer implementations and the like)
// flow untouched.
func Categorize(v any) Category {
	switch v := v.(type) {
	case nil:
		return Null
	case TypedValue:
		return Typed
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int
	case float32, float64:
		return Float
	case string:
		return Text
	case []byte:
		return Bytes
	case time.Time:
		return Time
	case *big.Int, *big.Float, *big.Rat:
		return Decimal
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return Sequence
		case reflect.Ptr:
			if rv.IsNil() {
				return Null
			}
			return Categorize(rv.Elem().Interface())
		}
		return Typed
	}
}

// Plan returns the value to hand to the driver for v. With bypass set the
// raw value is always returned: no categorization, no wrapper allocation.
func Plan(v any, bypass bool) any {
	if bypass {
		return v
	}
	c := Categorize(v)
	if strategies[c].Wrap {
		return TypedValue{Category: c, V: v}
	}
	return v
}

// PlanAll applies Plan across a bound value sequence. With bypass set the
// input slice is returned untouched, so the hot path allocates nothing.
func PlanAll(values []any, bypass bool) []any {
	if bypass {
		return values
	}
	planned := values
	copied := false
	for i, v := range values {
		c := Categorize(v)
		if !strategies[c].Wrap {
			continue
		}
		if !copied {
			planned = make([]any, len(values))
			copy(planned, values)
			copied = true
		}
		planned[i] = TypedValue{Category: c, V: v}
	}
	return planned
}
