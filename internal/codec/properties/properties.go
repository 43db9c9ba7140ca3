// Package properties reads and writes Java .properties files.
package properties

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Options controls how flat keys map onto the value model.
type Options struct {
	// Expand turns dotted keys into nested objects, and objects keyed
	// 0..n-1 into arrays.
	Expand bool
	// CoerceValues reads true, false and numbers as typed values.
	CoerceValues bool
}

// DefaultOptions expands and coerces
func DefaultOptions() Options {
	return Options{Expand: true, CoerceValues: true}
}

var valueRules = models.Rules{
	Booleans: true,
	Numbers:  true,
}

// Parse converts properties text into an object.
func Parse(text string, opts Options) (models.Value, error) {
	root := models.NewObject()

	for _, ln := range logicalLines(text) {
		key, raw := splitEntry(ln.text)
		k, err := unescape(key)
		if err != nil {
			return models.Value{}, errors.NewSyntaxError(fmt.Sprintf("line %d: %v", ln.no, err), nil)
		}
		s, err := unescape(raw)
		if err != nil {
			return models.Value{}, errors.NewSyntaxError(fmt.Sprintf("line %d: %v", ln.no, err), nil)
		}

		val := models.String(s)
		if opts.CoerceValues && s != "" {
			val = models.CoerceScalar(s, valueRules)
			if val.Kind() == models.KindString {
				val = models.String(s)
			}
		}

		if opts.Expand {
			insert(root, strings.Split(k, "."), val)
		} else {
			root.Set(k, val)
		}
	}

	if !opts.Expand {
		return models.ObjectValue(root), nil
	}
	return arrayify(models.ObjectValue(root)), nil
}

type logicalLine struct {
	no   int
	text string
}

// logicalLines drops blanks and comments and joins continuation lines.
func logicalLines(text string) []logicalLine {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	physical := strings.Split(text, "\n")

	var out []logicalLine
	for i := 0; i < len(physical); i++ {
		no := i + 1
		line := strings.TrimLeft(physical[i], " \t\f")
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		for continues(line) && i+1 < len(physical) {
			i++
			line = line[:len(line)-1] + strings.TrimLeft(physical[i], " \t\f")
		}
		if continues(line) {
			line = line[:len(line)-1]
		}
		out = append(out, logicalLine{no: no, text: line})
	}
	return out
}

// continues reports an odd number of trailing backslashes.
func continues(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// splitEntry separates the raw key from the raw value. The key ends at the
// first unescaped '=', ':' or whitespace.
func splitEntry(line string) (string, string) {
	end := len(line)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '=' || c == ':' || c == ' ' || c == '\t' || c == '\f' {
			end = i
			break
		}
	}
	key := line[:end]
	rest := strings.TrimLeft(line[end:], " \t\f")
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = strings.TrimLeft(rest[1:], " \t\f")
	}
	return key, rest
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var (
		b       strings.Builder
		pending rune = -1
	)
	flush := func() {
		if pending >= 0 {
			b.WriteRune(utf16.DecodeRune(pending, 0xFFFD))
			pending = -1
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			flush()
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'u':
			if len(s)-(i+1) < 4 {
				return "", fmt.Errorf("malformed \\uXXXX escape")
			}
			code, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("malformed \\uXXXX escape %q", s[i-1:i+5])
			}
			i += 4
			r := rune(code)
			if pending >= 0 && r >= 0xDC00 && r < 0xE000 {
				b.WriteRune(utf16.DecodeRune(pending, r))
				pending = -1
				continue
			}
			flush()
			if r >= 0xD800 && r < 0xDC00 {
				pending = r
				continue
			}
			b.WriteRune(r)
			continue
		case 'n':
			flush()
			b.WriteByte('\n')
		case 'r':
			flush()
			b.WriteByte('\r')
		case 't':
			flush()
			b.WriteByte('\t')
		case 'f':
			flush()
			b.WriteByte('\f')
		default:
			flush()
			b.WriteByte(s[i])
		}
	}
	flush()
	return b.String(), nil
}

// insert stores val at path, keeping the remaining path as a flat key when
// a scalar already occupies an intermediate segment.
func insert(obj *models.Object, path []string, val models.Value) {
	for i, part := range path[:len(path)-1] {
		existing, ok := obj.Get(part)
		switch {
		case !ok:
			next := models.NewObject()
			obj.Set(part, models.ObjectValue(next))
			obj = next
		case existing.Kind() == models.KindObject:
			obj = existing.Object()
		default:
			obj.Set(strings.Join(path[i:], "."), val)
			return
		}
	}

	last := path[len(path)-1]
	if existing, ok := obj.Get(last); ok && existing.Kind() == models.KindObject {
		// a.b=1 after a.b.c=2 keeps both
		obj.Set(strings.Join(path, "."), val)
		return
	}
	obj.Set(last, val)
}

func arrayify(v models.Value) models.Value {
	switch v.Kind() {
	case models.KindArray:
		items := make([]models.Value, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = arrayify(item)
		}
		return models.Array(items...)
	case models.KindObject:
		obj := v.Object()
		out := models.NewObject()
		obj.Range(func(key string, child models.Value) bool {
			out.Set(key, arrayify(child))
			return true
		})
		if items, ok := sequential(out); ok {
			return models.Array(items...)
		}
		return models.ObjectValue(out)
	}
	return v
}

// sequential returns the values of obj when its keys are exactly 0..n-1.
func sequential(obj *models.Object) ([]models.Value, bool) {
	if obj.Len() == 0 {
		return nil, false
	}
	items := make([]models.Value, obj.Len())
	seen := 0
	for _, key := range obj.Keys() {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(items) || strconv.Itoa(idx) != key {
			return nil, false
		}
		items[idx], _ = obj.Get(key)
		seen++
	}
	return items, seen == len(items)
}

// Generate flattens v into key=value lines. Arrays use numeric path
// segments and empty containers are written as empty values.
func Generate(v models.Value) (string, error) {
	if v.IsScalar() {
		return "", errors.NewUnsupportedShapeError(
			fmt.Sprintf("properties need an object or array, got %s", v.Kind()), errors.ErrUnsupportedShape)
	}

	var b strings.Builder
	for _, leaf := range models.Flatten(v, models.IndexDotted) {
		if leaf.Path == "" {
			continue
		}
		b.WriteString(escape(leaf.Path, true))
		b.WriteByte('=')
		if leaf.Value.IsScalar() {
			b.WriteString(escape(models.ScalarText(leaf.Value), false))
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func escape(s string, key bool) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case '=', ':', '#', '!':
			b.WriteByte('\\')
			b.WriteRune(r)
		case ' ':
			if key || i == 0 {
				b.WriteString(`\ `)
			} else {
				b.WriteByte(' ')
			}
		default:
			if r < 0x20 || r > 0x7e {
				for _, u := range utf16.Encode([]rune{r}) {
					fmt.Fprintf(&b, `\u%04X`, u)
				}
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
