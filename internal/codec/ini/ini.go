// Package ini reads and writes INI files. Section names containing dots
// nest, and keys ending in [] collect repeated values into an array.
package ini

import (
	"fmt"
	"strings"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Parse converts INI text into an object. Keys before the first section
// land on the root.
func Parse(text string) (models.Value, error) {
	root := models.NewObject()
	current := root

	for i, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		no := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}

		if line[0] == '[' {
			if !strings.HasSuffix(line, "]") {
				return models.Value{}, syntaxError(no, "unterminated section header %q", line)
			}
			section, err := descend(root, strings.TrimSpace(line[1:len(line)-1]))
			if err != nil {
				return models.Value{}, syntaxError(no, "%v", err)
			}
			current = section
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return models.Value{}, syntaxError(no, "expected key=value, got %q", line)
		}
		key := strings.TrimSpace(line[:eq])
		if key == "" {
			return models.Value{}, syntaxError(no, "missing key before '='")
		}
		value := models.CoerceScalar(line[eq+1:], models.INIRules)

		if name, ok := strings.CutSuffix(key, "[]"); ok {
			existing, _ := current.Get(name)
			items := append([]models.Value{}, existing.Items()...)
			current.Set(name, models.Array(append(items, value)...))
			continue
		}
		current.Set(key, value)
	}
	return models.ObjectValue(root), nil
}

func syntaxError(no int, format string, args ...any) error {
	return errors.NewSyntaxError(fmt.Sprintf("line %d: %s", no, fmt.Sprintf(format, args...)), nil)
}

func descend(root *models.Object, name string) (*models.Object, error) {
	if name == "" {
		return nil, fmt.Errorf("empty section name")
	}
	cur := root
	for _, part := range strings.Split(name, ".") {
		part = strings.TrimSpace(part)
		v, ok := cur.Get(part)
		switch {
		case !ok:
			next := models.NewObject()
			cur.Set(part, models.ObjectValue(next))
			cur = next
		case v.Kind() == models.KindObject:
			cur = v.Object()
		default:
			return nil, fmt.Errorf("section %q collides with key %q", name, part)
		}
	}
	return cur, nil
}

// Generate writes top-level scalars first, then one [section] per
// object-valued key. Deeper objects become dotted sub-sections.
func Generate(v models.Value) (string, error) {
	if v.Kind() != models.KindObject {
		return "", errors.NewUnsupportedShapeError(
			fmt.Sprintf("INI documents must be an object, got %s", v.Kind()), errors.ErrUnsupportedShape)
	}
	var b strings.Builder
	writeSection(&b, "", v.Object())
	return b.String(), nil
}

func writeSection(b *strings.Builder, name string, obj *models.Object) {
	if name != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "[%s]\n", name)
	}

	var children []string
	obj.Range(func(key string, val models.Value) bool {
		switch val.Kind() {
		case models.KindObject:
			children = append(children, key)
		case models.KindArray:
			for _, item := range val.Items() {
				fmt.Fprintf(b, "%s[] = %s\n", key, value(item))
			}
		default:
			fmt.Fprintf(b, "%s = %s\n", key, value(val))
		}
		return true
	})

	for _, key := range children {
		child, _ := obj.Get(key)
		path := key
		if name != "" {
			path = name + "." + key
		}
		writeSection(b, path, child.Object())
	}
}

func value(v models.Value) string {
	switch v.Kind() {
	case models.KindNull:
		return "null"
	case models.KindString:
		s := v.AsString()
		if needsQuotes(s) {
			return `"` + s + `"`
		}
		return s
	case models.KindArray, models.KindObject:
		return `"` + models.EncodeJSON(v, 0) + `"`
	}
	return models.ScalarText(v)
}

// needsQuotes reports whether s would not read back as the same string.
func needsQuotes(s string) bool {
	if s == "" || strings.ContainsAny(s, `;#"`) {
		return true
	}
	back := models.CoerceScalar(s, models.INIRules)
	return back.Kind() != models.KindString || back.AsString() != s
}
