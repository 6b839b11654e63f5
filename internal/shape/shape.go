// Copyright 2026 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package shape converts raw driver rows into the caller's requested form.
// The bare path hands rows back untouched. The mapped path resolves the
// column to struct field correspondence once per result set, from the
// column metadata and the destination type, and applies that resolved
// mapping to every row.
package shape

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

var infoMutex sync.RWMutex
var infoCache = make(map[reflect.Type]*info)

// resolveCount counts column-to-field resolutions. One result set must
// cost exactly one resolution however many rows it has.
var resolveCount atomic.Uint64

type field struct {
	name  string
	index int
}

// info holds the "db" tagged fields of a struct type. Generated once per
// type and cached.
type info struct {
	typ        reflect.Type
	tagToField map[string]field
}

func getInfo(t reflect.Type) (*info, error) {
	infoMutex.RLock()
	in, found := infoCache[t]
	infoMutex.RUnlock()
	if found {
		return in, nil
	}

	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot map rows into %s: not a struct", t)
	}
	in = &info{typ: t, tagToField: make(map[string]field)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("db")
		if tag == "" || !f.IsExported() {
			continue
		}
		in.tagToField[tag] = field{name: f.Name, index: i}
	}

	infoMutex.Lock()
	infoCache[t] = in
	infoMutex.Unlock()
	return in, nil
}

// mapping is the resolved column to field correspondence for one result
// set: for each column, the destination field index or -1 when the column
// has no tagged field.
type mapping []int

// resolve builds the mapping for a column set against a destination type.
func resolve(columns []string, in *info) mapping {
	resolveCount.Add(1)
	m := make(mapping, len(columns))
	for i, col := range columns {
		if f, ok := in.tagToField[col]; ok {
			m[i] = f.index
		} else {
			m[i] = -1
		}
	}
	return m
}

// ScanAll maps every row into dest, which must be a pointer to a slice of
// structs with "db" tags. The column resolution happens exactly once, not
// per row. Columns without a matching tagged field are skipped; NULL values
// leave the field at its zero value.
func ScanAll(columns []string, rows [][]any, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("cannot map rows: destination must be a pointer to a slice")
	}
	sliceVal := dv.Elem()
	elemType := sliceVal.Type().Elem()
	in, err := getInfo(elemType)
	if err != nil {
		return err
	}

	m := resolve(columns, in)

	out := reflect.MakeSlice(sliceVal.Type(), len(rows), len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("cannot map rows: row %d has %d values for %d columns", r, len(row), len(columns))
		}
		ev := out.Index(r)
		for c, fi := range m {
			if fi < 0 || row[c] == nil {
				continue
			}
			if err := assign(ev.Field(fi), row[c]); err != nil {
				return fmt.Errorf("cannot map column %q of row %d: %s", columns[c], r, err)
			}
		}
	}
	sliceVal.Set(out)
	return nil
}

// assign sets a struct field from a raw driver value, converting between
// compatible kinds where drivers widen (int64 for all integers, []byte for
// text).
func assign(fv reflect.Value, raw any) error {
	rv := reflect.ValueOf(raw)
	ft := fv.Type()
	switch {
	case rv.Type().AssignableTo(ft):
		fv.Set(rv)
	case ft.Kind() == reflect.String:
		// A numeric value is convertible to string, but that is the rune
		// conversion, never what a column scan means.
		if b, ok := raw.([]byte); ok {
			fv.SetString(string(b))
			return nil
		}
		return fmt.Errorf("type %s is not assignable to %s", rv.Type(), ft)
	case rv.Type().ConvertibleTo(ft):
		fv.Set(rv.Convert(ft))
	default:
		return fmt.Errorf("type %s is not assignable to %s", rv.Type(), ft)
	}
	return nil
}
