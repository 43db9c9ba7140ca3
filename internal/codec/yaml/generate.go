package yaml

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mcncl/convertkit/internal/models"
)

// Options controls YAML output
type Options struct {
	Indentation int
	SortKeys    bool
}

// DefaultOptions returns two-space indentation in document order
func DefaultOptions() Options {
	return Options{Indentation: 2}
}

// Generate renders v in block style. Only empty collections use flow style.
func Generate(v models.Value, opts Options) string {
	if opts.Indentation <= 0 {
		opts.Indentation = 2
	}
	g := &generator{opts: opts}

	switch {
	case v.Kind() == models.KindObject && v.Object().Len() > 0:
		g.object(v.Object(), 0)
	case v.Kind() == models.KindArray && len(v.Items()) > 0:
		g.sequence(v.Items(), 0)
	default:
		g.b.WriteString(inline(v))
		g.b.WriteByte('\n')
	}
	return g.b.String()
}

type generator struct {
	b    strings.Builder
	opts Options
}

func (g *generator) keys(obj *models.Object) []string {
	keys := obj.Keys()
	if g.opts.SortKeys {
		sort.Strings(keys)
	}
	return keys
}

func isBlock(v models.Value) bool {
	switch v.Kind() {
	case models.KindObject:
		return v.Object().Len() > 0
	case models.KindArray:
		return len(v.Items()) > 0
	}
	return false
}

func (g *generator) object(obj *models.Object, col int) {
	pad := strings.Repeat(" ", col)
	for _, key := range g.keys(obj) {
		val, _ := obj.Get(key)
		if !isBlock(val) {
			fmt.Fprintf(&g.b, "%s%s: %s\n", pad, quote(key), inline(val))
			continue
		}
		fmt.Fprintf(&g.b, "%s%s:\n", pad, quote(key))
		if val.Kind() == models.KindObject {
			g.object(val.Object(), col+g.opts.Indentation)
		} else {
			g.sequence(val.Items(), col+g.opts.Indentation)
		}
	}
}

func (g *generator) sequence(items []models.Value, col int) {
	pad := strings.Repeat(" ", col)
	for _, item := range items {
		if !isBlock(item) {
			fmt.Fprintf(&g.b, "%s- %s\n", pad, inline(item))
			continue
		}
		// Render the item two columns in, then swap the first line's
		// indentation for the "- " marker.
		sub := &generator{opts: g.opts}
		if item.Kind() == models.KindObject {
			sub.object(item.Object(), col+2)
		} else {
			sub.sequence(item.Items(), col+2)
		}
		g.b.WriteString(pad)
		g.b.WriteString("- ")
		g.b.WriteString(sub.b.String()[col+2:])
	}
}

func inline(v models.Value) string {
	switch v.Kind() {
	case models.KindNull:
		return "null"
	case models.KindBool, models.KindNumber:
		return models.ScalarText(v)
	case models.KindString:
		return quote(v.AsString())
	case models.KindArray:
		return "[]"
	case models.KindObject:
		return "{}"
	}
	return ""
}

const significant = ":-[]{}#|>*&!%@`,\"'\\"

var reserved = map[string]struct{}{
	"yes": {}, "no": {}, "on": {}, "off": {}, "y": {}, "n": {},
}

// quote returns s as a plain scalar when it would read back as the same
// string, and double quoted otherwise.
func quote(s string) string {
	if !needsQuotes(s) {
		return s
	}
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
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuotes(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return true
	}
	if models.CoerceScalar(s, models.YAMLRules).Kind() != models.KindString {
		return true
	}
	if _, ok := reserved[strings.ToLower(s)]; ok {
		return true
	}
	if strings.ContainsAny(s, significant) {
		return true
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
