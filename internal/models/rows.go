package models

import (
	"fmt"
	"strings"

	"github.com/mcncl/convertkit/internal/errors"
)

// ValueColumn names the single column used when rows are plain scalars.
const ValueColumn = "value"

// Rows normalizes tabular input into a list of records:
//   - an array keeps its object elements and wraps anything else as {value: x}
//   - an object with exactly one array-valued property is unwrapped
//   - any other object becomes a single record
//
// Scalars and null are rejected with an unsupported shape error.
func Rows(v Value) ([]*Object, error) {
	switch v.Kind() {
	case KindArray:
		rows := make([]*Object, 0, len(v.Items()))
		for _, item := range v.Items() {
			if item.Kind() == KindObject {
				rows = append(rows, item.Object())
				continue
			}
			wrapped := NewObject()
			wrapped.Set(ValueColumn, item)
			rows = append(rows, wrapped)
		}
		return rows, nil
	case KindObject:
		obj := v.Object()
		if obj.Len() == 1 {
			only, _ := obj.Get(obj.Keys()[0])
			if only.Kind() == KindArray {
				return Rows(only)
			}
		}
		return []*Object{obj}, nil
	default:
		return nil, errors.NewUnsupportedShapeError(
			fmt.Sprintf("expected an object or an array of objects, got %s", v.Kind()),
			errors.ErrUnsupportedShape)
	}
}

// FlattenRecord flattens nested values into dotted column names.
// Arrays of scalars are joined with ", " and arrays containing objects are
// expanded per index as key[i].sub.
func FlattenRecord(obj *Object) *Object {
	out := NewObject()
	obj.Range(func(key string, v Value) bool {
		flattenCell(out, key, v)
		return true
	})
	return out
}

func flattenCell(out *Object, prefix string, v Value) {
	switch v.Kind() {
	case KindObject:
		if v.Object().Len() == 0 {
			out.Set(prefix, String(""))
			return
		}
		v.Object().Range(func(key string, child Value) bool {
			flattenCell(out, prefix+"."+key, child)
			return true
		})
	case KindArray:
		items := v.Items()
		if allScalars(items) {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = ScalarText(item)
			}
			out.Set(prefix, String(strings.Join(parts, ", ")))
			return
		}
		for i, item := range items {
			flattenCell(out, fmt.Sprintf("%s[%d]", prefix, i), item)
		}
	default:
		out.Set(prefix, v)
	}
}

func allScalars(items []Value) bool {
	for _, item := range items {
		if !item.IsScalar() {
			return false
		}
	}
	return true
}

// Columns returns the union of record keys in first-seen order, skipping
// any key listed in exclude.
func Columns(rows []*Object, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		skip[k] = struct{}{}
	}
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		row.Range(func(key string, _ Value) bool {
			if _, excluded := skip[key]; excluded {
				return true
			}
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				cols = append(cols, key)
			}
			return true
		})
	}
	return cols
}
