package toml

import (
	"fmt"
	"strings"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Generate renders an object as TOML. Scalar and array keys come first,
// then one [table] per object-valued key and one [[table]] block per
// element of an array of objects. Objects below the first level are
// written as inline tables and null keys are dropped.
func Generate(v models.Value) (string, error) {
	if v.Kind() != models.KindObject {
		return "", errors.NewUnsupportedShapeError(
			fmt.Sprintf("TOML documents must be a table, got %s", v.Kind()), errors.ErrUnsupportedShape)
	}

	var (
		b        strings.Builder
		deferred []string
	)
	root := v.Object()
	root.Range(func(key string, val models.Value) bool {
		switch {
		case val.IsNull():
		case val.Kind() == models.KindObject, isTableArray(val):
			deferred = append(deferred, key)
		default:
			fmt.Fprintf(&b, "%s = %s\n", formatKey(key), inline(val))
		}
		return true
	})

	for _, key := range deferred {
		val, _ := root.Get(key)
		if val.Kind() == models.KindObject {
			header(&b, "["+formatKey(key)+"]")
			body(&b, val.Object())
			continue
		}
		for _, item := range val.Items() {
			header(&b, "[["+formatKey(key)+"]]")
			body(&b, item.Object())
		}
	}
	return b.String(), nil
}

func header(b *strings.Builder, h string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(h)
	b.WriteByte('\n')
}

func body(b *strings.Builder, obj *models.Object) {
	obj.Range(func(key string, val models.Value) bool {
		if !val.IsNull() {
			fmt.Fprintf(b, "%s = %s\n", formatKey(key), inline(val))
		}
		return true
	})
}

func isTableArray(v models.Value) bool {
	if v.Kind() != models.KindArray || len(v.Items()) == 0 {
		return false
	}
	for _, item := range v.Items() {
		if item.Kind() != models.KindObject {
			return false
		}
	}
	return true
}

func inline(v models.Value) string {
	switch v.Kind() {
	case models.KindBool, models.KindNumber:
		return models.ScalarText(v)
	case models.KindString:
		return quote(v.AsString())
	case models.KindArray:
		parts := make([]string, len(v.Items()))
		for i, item := range v.Items() {
			parts[i] = inline(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case models.KindObject:
		var parts []string
		v.Object().Range(func(key string, val models.Value) bool {
			if !val.IsNull() {
				parts = append(parts, formatKey(key)+" = "+inline(val))
			}
			return true
		})
		if len(parts) == 0 {
			return "{}"
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	// TOML has no null; array slots keep their position as an empty string.
	return `""`
}

func formatKey(key string) string {
	if bareKey.MatchString(key) {
		return key
	}
	return quote(key)
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
